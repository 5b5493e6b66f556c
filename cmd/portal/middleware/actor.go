package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/logger"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for the acting user id
	ActorKey ContextKey = "actor"

	// ActorHeader carries the acting user id
	ActorHeader = "X-User-ID"
)

// ExtractActor stores the X-User-ID header in the echo context and tags the
// request context with the request id for logging. The role behind the id is
// resolved by the workflow core; the header itself is trusted as-is.
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if actor := c.Request().Header.Get(ActorHeader); actor != "" {
				c.Set(string(ActorKey), actor)
			}

			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if reqID != "" {
				ctx := logger.NewContext(c.Request().Context(), reqID)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// GetActor retrieves the actor id from the request context
// Returns empty string if not set
func GetActor(c echo.Context) string {
	actor, _ := c.Get(string(ActorKey)).(string)
	return actor
}

// RequireActor returns the actor id or an Unauthorized error
func RequireActor(c echo.Context) (string, error) {
	actor := GetActor(c)
	if actor == "" {
		return "", apperr.New(apperr.CodeUnauthorized, "authentication required (X-User-ID header missing)")
	}
	return actor, nil
}
