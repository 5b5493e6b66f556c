package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/common/ratelimit"
)

// Limiter is satisfied by *ratelimit.RateLimiter
type Limiter interface {
	Check(ctx context.Context, p ratelimit.Policy, subject string) (*ratelimit.Result, error)
}

// PublicRateLimit limits requests per client IP
func PublicRateLimit(limiter Limiter, p ratelimit.Policy) echo.MiddlewareFunc {
	return rateLimit(limiter, p, func(c echo.Context) string { return c.RealIP() })
}

// ActorRateLimit limits requests per X-User-ID. Requests without an actor
// pass; the handlers reject them.
func ActorRateLimit(limiter Limiter, p ratelimit.Policy) echo.MiddlewareFunc {
	return rateLimit(limiter, p, GetActor)
}

func rateLimit(limiter Limiter, p ratelimit.Policy, subject func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodGet && p.Scope == ratelimit.ScopeActor {
				return next(c)
			}
			key := subject(c)
			if key == "" {
				return next(c)
			}

			result, err := limiter.Check(c.Request().Context(), p, key)
			if err != nil {
				// fail open
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error": "rate limit exceeded",
					"code":  "rate_limited",
					"details": map[string]any{
						"scope":               p.Scope,
						"limit":               result.Limit,
						"window_seconds":      p.WindowSeconds,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
