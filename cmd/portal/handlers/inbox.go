package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/notify"
)

// InboxHandler serves the caller's recent notifications
type InboxHandler struct {
	inbox *notify.Inbox
}

// NewInboxHandler creates a new inbox handler
func NewInboxHandler(c *container.Container) *InboxHandler {
	return &InboxHandler{inbox: c.Inbox}
}

// List returns the caller's notifications, newest first
// GET /api/v1/inbox
func (h *InboxHandler) List(c echo.Context) error {
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user_id":       actor,
		"notifications": h.inbox.List(actor),
	})
}
