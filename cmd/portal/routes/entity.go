package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
)

// RegisterEntityRoutes registers entity lifecycle routes
func RegisterEntityRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewEntityHandler(c)

	entities := apiGroup(e, c, "/entities")
	{
		entities.POST("/:kind", h.CreateEntity)                 // POST /api/v1/entities/award
		entities.GET("/:kind/:id", h.GetEntity)                 // GET /api/v1/entities/award/{id}
		entities.GET("/:kind/:id/next-states", h.GetNextStates) // GET /api/v1/entities/award/{id}/next-states
		entities.POST("/:kind/:id/transitions", h.Transition)   // POST /api/v1/entities/award/{id}/transitions
		entities.GET("/:kind/:id/history", h.GetHistory)        // GET /api/v1/entities/award/{id}/history
		entities.POST("/:kind/:id/reissue", h.Reissue)          // POST /api/v1/entities/award/{id}/reissue
	}
}
