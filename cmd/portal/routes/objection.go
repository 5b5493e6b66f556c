package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
)

// RegisterObjectionRoutes registers objection filing routes
func RegisterObjectionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewObjectionHandler(c)

	notifications := apiGroup(e, c, "/notifications")
	{
		notifications.POST("/:id/objections", h.FileObjection) // POST /api/v1/notifications/{id}/objections
		notifications.GET("/:id/objections", h.ListObjections) // GET /api/v1/notifications/{id}/objections?unresolved=true
	}
}
