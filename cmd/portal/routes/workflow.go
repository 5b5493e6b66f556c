package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/handlers"
)

// RegisterWorkflowRoutes registers the state machine definition routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c)

	wf := apiGroup(e, c, "/workflows")
	{
		wf.GET("", h.ListWorkflows)                          // GET /api/v1/workflows
		wf.GET("/:kind", h.GetWorkflow)                      // GET /api/v1/workflows/award
		wf.GET("/:kind/states/:state/next", h.GetNextStates) // GET /api/v1/workflows/award/states/draft/next
	}
}
