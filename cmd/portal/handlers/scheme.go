package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/cmd/portal/service"
	"github.com/landrecords/portal/common/models"
)

// SchemeHandler handles scheme applications and allotment draws
type SchemeHandler struct {
	draws *service.DrawService
	store service.DrawStore
}

// NewSchemeHandler creates a new scheme handler
func NewSchemeHandler(c *container.Container) *SchemeHandler {
	return &SchemeHandler{draws: c.DrawService, store: c.Backend}
}

// AddApplication registers an eligible application
// POST /api/v1/schemes/:id/applications
func (h *SchemeHandler) AddApplication(c echo.Context) error {
	var req service.ApplicationInput
	if err := bind(c, &req); err != nil {
		return err
	}
	app, err := h.draws.AddApplication(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}

// ListApplications lists a scheme's applications in pool order
// GET /api/v1/schemes/:id/applications?status=eligible
func (h *SchemeHandler) ListApplications(c echo.Context) error {
	list, err := h.store.ListApplications(c.Request().Context(), models.ApplicationFilter{
		SchemeID: c.Param("id"),
		Status:   models.ApplicationStatus(c.QueryParam("status")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"scheme_id":    c.Param("id"),
		"applications": list,
	})
}

// ConductDraw runs the scheme's allotment draw
// POST /api/v1/schemes/:id/draws
func (h *SchemeHandler) ConductDraw(c echo.Context) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		SelectedCount int `json:"selected_count"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	audit, err := h.draws.Conduct(c.Request().Context(), service.ConductRequest{
		SchemeID:      c.Param("id"),
		SelectedCount: req.SelectedCount,
		ActorID:       actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, audit)
}

// GetDraw retrieves a stored draw
// GET /api/v1/draws/:id
func (h *SchemeHandler) GetDraw(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	audit, err := h.draws.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, audit)
}

// VerifyDraw recomputes the hashes of a stored draw and replays it
// GET /api/v1/draws/:id/verify
func (h *SchemeHandler) VerifyDraw(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	v, err := h.draws.Verify(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
