package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/service"
)

// VerifyHandler is the public document verification endpoint
type VerifyHandler struct {
	documents *service.DocumentService
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(c *container.Container) *VerifyHandler {
	return &VerifyHandler{documents: c.DocumentService}
}

// Verify reports whether a document hash was issued and still matches
// GET /verify/:documentType/:hash
func (h *VerifyHandler) Verify(c echo.Context) error {
	res, err := h.documents.Verify(c.Request().Context(), c.Param("documentType"), c.Param("hash"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
