package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/statemachine"
)

// WorkflowHandler serves the state machine definitions
type WorkflowHandler struct {
	registry *statemachine.Registry
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(c *container.Container) *WorkflowHandler {
	return &WorkflowHandler{registry: c.Registry}
}

type edgeResponse struct {
	From  models.State `json:"from"`
	To    models.State `json:"to"`
	Guard string       `json:"guard,omitempty"`
}

type definitionResponse struct {
	Kind     models.Kind                   `json:"kind"`
	Initial  models.State                  `json:"initial"`
	States   []models.State                `json:"states"`
	Terminal []models.State                `json:"terminal"`
	Edges    []edgeResponse                `json:"edges"`
	GatedBy  map[models.State][]models.Role `json:"gated_by"`
}

func (h *WorkflowHandler) describe(kind models.Kind) (*definitionResponse, error) {
	d, err := h.registry.Definition(kind)
	if err != nil {
		return nil, err
	}
	resp := &definitionResponse{
		Kind:     d.Kind,
		Initial:  d.Initial(),
		States:   d.States,
		Terminal: make([]models.State, 0),
		Edges:    make([]edgeResponse, 0, len(d.Edges)),
		GatedBy:  d.GatedBy,
	}
	for _, s := range d.States {
		if d.IsTerminal(s) {
			resp.Terminal = append(resp.Terminal, s)
		}
	}
	for _, e := range d.Edges {
		resp.Edges = append(resp.Edges, edgeResponse{From: e.From, To: e.To, Guard: e.Guard})
	}
	return resp, nil
}

// ListWorkflows lists every registered definition
// GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	kinds := h.registry.Kinds()
	out := make([]*definitionResponse, 0, len(kinds))
	for _, k := range kinds {
		d, err := h.describe(k)
		if err != nil {
			return err
		}
		out = append(out, d)
	}
	return c.JSON(http.StatusOK, map[string]any{"workflows": out})
}

// GetWorkflow returns one definition
// GET /api/v1/workflows/:kind
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	d, err := h.describe(kind)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// GetNextStates lists declared targets of a state, guards not evaluated
// GET /api/v1/workflows/:kind/states/:state/next
func (h *WorkflowHandler) GetNextStates(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	state := models.State(c.Param("state"))
	if !h.registry.HasState(kind, state) {
		return apperr.Newf(apperr.CodeNotFound, "%s has no state %q", kind, state)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"kind":        kind,
		"state":       state,
		"terminal":    h.registry.IsTerminal(kind, state),
		"next_states": h.registry.ValidNextStates(kind, state),
	})
}
