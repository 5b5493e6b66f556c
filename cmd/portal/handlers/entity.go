package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

// EntityHandler exposes entity creation, transitions and history
type EntityHandler struct {
	executor *workflow.Executor
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(c *container.Container) *EntityHandler {
	return &EntityHandler{executor: c.Executor}
}

// CreateEntity creates an entity in its initial state
// POST /api/v1/entities/:kind
func (h *EntityHandler) CreateEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Type       string         `json:"type"`
		Attributes map[string]any `json:"attributes"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	e, err := h.executor.Create(c.Request().Context(), workflow.CreateRequest{
		Kind:       kind,
		Type:       req.Type,
		Attributes: req.Attributes,
		ActorID:    actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

// GetEntity retrieves an entity
// GET /api/v1/entities/:kind/:id
func (h *EntityHandler) GetEntity(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	e, err := h.executor.Get(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// GetNextStates lists targets whose guards pass for this entity
// GET /api/v1/entities/:kind/:id/next-states
func (h *EntityHandler) GetNextStates(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	next, err := h.executor.NextStates(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"kind":        kind,
		"id":          id,
		"next_states": next,
	})
}

// Transition moves an entity to a new state
// POST /api/v1/entities/:kind/:id/transitions
func (h *EntityHandler) Transition(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		TargetState models.State `json:"target_state"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.TargetState == "" {
		return apperr.New(apperr.CodeInvalidArgument, "target_state is required")
	}

	res, err := h.executor.Transition(c.Request().Context(), workflow.TransitionRequest{
		Kind:     kind,
		EntityID: id,
		Target:   req.TargetState,
		ActorID:  actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// GetHistory returns the transition log, oldest first
// GET /api/v1/entities/:kind/:id/history
func (h *EntityHandler) GetHistory(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	recs, err := h.executor.History(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"kind":    kind,
		"id":      id,
		"history": recs,
	})
}

// Reissue renders the current document again as a new artifact
// POST /api/v1/entities/:kind/:id/reissue
func (h *EntityHandler) Reissue(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	res, err := h.executor.Reissue(c.Request().Context(), workflow.ReissueRequest{
		Kind:     kind,
		EntityID: id,
		ActorID:  actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
