package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
)

// RegisterSchemeRoutes registers scheme application and draw routes
func RegisterSchemeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSchemeHandler(c)

	schemes := apiGroup(e, c, "/schemes")
	{
		schemes.POST("/:id/applications", h.AddApplication)  // POST /api/v1/schemes/plots-2025/applications
		schemes.GET("/:id/applications", h.ListApplications) // GET /api/v1/schemes/plots-2025/applications?status=eligible
		schemes.POST("/:id/draws", h.ConductDraw)            // POST /api/v1/schemes/plots-2025/draws
	}

	draws := apiGroup(e, c, "/draws")
	{
		draws.GET("/:id", h.GetDraw)           // GET /api/v1/draws/{draw_id}
		draws.GET("/:id/verify", h.VerifyDraw) // GET /api/v1/draws/{draw_id}/verify
	}
}
