package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/ratelimit"
)

// RegisterPublicRoutes registers unauthenticated routes
func RegisterPublicRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewVerifyHandler(c)

	verify := e.Group("/verify")
	if c.RateLimiter != nil {
		verify.Use(middleware.PublicRateLimit(c.RateLimiter, ratelimit.PublicPolicy(c.Components.Config.RateLimit.PublicLimit)))
	}
	{
		verify.GET("/:documentType/:hash", h.Verify) // GET /verify/award_order/{sha256}
	}
}

// RegisterInboxRoutes registers the caller's notification inbox
func RegisterInboxRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewInboxHandler(c)
	stream := handlers.NewStreamHandler(c)

	inbox := apiGroup(e, c, "/inbox")
	{
		inbox.GET("", h.List)               // GET /api/v1/inbox
		inbox.GET("/stream", stream.Stream) // GET /api/v1/inbox/stream (websocket)
	}
}
