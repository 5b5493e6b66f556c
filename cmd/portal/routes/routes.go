package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/ratelimit"
)

// apiGroup returns an /api/v1 sub-group with actor extraction and, when
// configured, the per-actor write limit.
func apiGroup(e *echo.Echo, c *container.Container, prefix string) *echo.Group {
	g := e.Group("/api/v1" + prefix)
	g.Use(middleware.ExtractActor()) // Extract X-User-ID into context
	if c.RateLimiter != nil {
		g.Use(middleware.ActorRateLimit(c.RateLimiter, ratelimit.ActorPolicy(c.Components.Config.RateLimit.ActorLimit)))
	}
	return g
}
