package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
)

// RegisterSequenceRoutes registers counter allocation routes (admin only)
func RegisterSequenceRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSequenceHandler(c)

	sequences := apiGroup(e, c, "/sequences")
	{
		sequences.POST("/:name/next", h.Next) // POST /api/v1/sequences/SEC11/next
	}
}
