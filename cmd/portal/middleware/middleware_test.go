package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/ratelimit"
)

func serve(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestExtractActor(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger.Discard())
	e.Use(ExtractActor())
	e.GET("/whoami", func(c echo.Context) error {
		actor, err := RequireActor(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, actor)
	})

	rec := serve(e, http.MethodGet, "/whoami", map[string]string{ActorHeader: "legal-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "legal-1", rec.Body.String())

	rec = serve(e, http.MethodGet, "/whoami", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.CodeUnauthorized, decodeError(t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Code]int{
		apperr.CodeInvalidTransition:    http.StatusUnprocessableEntity,
		apperr.CodeInvalidSelectionSize: http.StatusUnprocessableEntity,
		apperr.CodeInvalidArgument:      http.StatusUnprocessableEntity,
		apperr.CodeUnauthorized:         http.StatusForbidden,
		apperr.CodeObjectionsPending:    http.StatusConflict,
		apperr.CodeConcurrencyConflict:  http.StatusConflict,
		apperr.CodeNotFound:             http.StatusNotFound,
		apperr.CodeIntegrityMismatch:    http.StatusInternalServerError,
		apperr.CodeInternal:             http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger.Discard())
	e.GET("/pending", func(c echo.Context) error {
		return apperr.New(apperr.CodeObjectionsPending, "2 objections unresolved").WithDetail("count", 2)
	})
	e.GET("/sentinel", func(c echo.Context) error {
		return fmt.Errorf("award 1: %w", apperr.ErrNotFound)
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("connection reset by peer")
	})

	rec := serve(e, http.MethodGet, "/pending", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperr.CodeObjectionsPending, body.Code)
	assert.Equal(t, "2 objections unresolved", body.Error)
	assert.EqualValues(t, 2, body.Details["count"])

	rec = serve(e, http.MethodGet, "/sentinel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, decodeError(t, rec).Code)

	rec = serve(e, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decodeError(t, rec)
	assert.Equal(t, "internal error", body.Error)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	rec = serve(e, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeNotFound, decodeError(t, rec).Code)
}

type fakeLimiter struct {
	allow  int64
	counts map[string]int64
	err    error
}

func (f *fakeLimiter) Check(_ context.Context, p ratelimit.Policy, subject string) (*ratelimit.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := ratelimit.Key(p, subject)
	f.counts[key]++
	n := f.counts[key]
	res := &ratelimit.Result{Allowed: n <= f.allow, CurrentCount: n, Limit: f.allow}
	if !res.Allowed {
		res.RetryAfterSeconds = 30
	}
	return res, nil
}

func TestActorRateLimit(t *testing.T) {
	limiter := &fakeLimiter{allow: 2, counts: map[string]int64{}}
	e := echo.New()
	e.Use(ExtractActor())
	e.Use(ActorRateLimit(limiter, ratelimit.ActorPolicy(2)))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.POST("/write", ok)
	e.GET("/read", ok)

	alice := map[string]string{ActorHeader: "alice"}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/write", alice).Code)
	}
	rec := serve(e, http.MethodPost, "/write", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	// reads and other actors are not counted against alice
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/read", alice).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/write", map[string]string{ActorHeader: "bob"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/write", nil).Code)
}

func TestPublicRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	e := echo.New()
	e.Use(PublicRateLimit(limiter, ratelimit.PublicPolicy(1)))
	e.GET("/verify", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/verify", nil).Code)
	}
}
