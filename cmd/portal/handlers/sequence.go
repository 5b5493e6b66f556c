package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/cmd/portal/service"
)

// SequenceHandler exposes raw counter allocation
type SequenceHandler struct {
	sequences *service.SequenceService
}

// NewSequenceHandler creates a new sequence handler
func NewSequenceHandler(c *container.Container) *SequenceHandler {
	return &SequenceHandler{sequences: c.SequenceService}
}

// Next allocates the next value of a counter. Year defaults to the current one.
// POST /api/v1/sequences/:name/next
func (h *SequenceHandler) Next(c echo.Context) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Year int `json:"year"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Year == 0 {
		req.Year = time.Now().UTC().Year()
	}

	alloc, err := h.sequences.Next(c.Request().Context(), actor, c.Param("name"), req.Year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alloc)
}
