package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/cmd/portal/container"
	"github.com/landrecords/portal/cmd/portal/middleware"
	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

// ObjectionHandler files and lists objections against notifications
type ObjectionHandler struct {
	executor *workflow.Executor
}

// NewObjectionHandler creates a new objection handler
func NewObjectionHandler(c *container.Container) *ObjectionHandler {
	return &ObjectionHandler{executor: c.Executor}
}

// FileObjection files an objection while the window is open
// POST /api/v1/notifications/:id/objections
func (h *ObjectionHandler) FileObjection(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		ParcelID string `json:"parcel_id"`
		Grounds  string `json:"grounds"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	obj, err := h.executor.FileObjection(c.Request().Context(), workflow.FileObjectionRequest{
		NotificationID: id,
		ParcelID:       req.ParcelID,
		Grounds:        req.Grounds,
		ActorID:        actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, obj)
}

// ListObjections lists objections of a notification
// GET /api/v1/notifications/:id/objections?unresolved=true
func (h *ObjectionHandler) ListObjections(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	filter := models.ObjectionFilter{NotificationID: id}
	if raw := c.QueryParam("unresolved"); raw != "" {
		filter.UnresolvedOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return apperr.New(apperr.CodeInvalidArgument, "unresolved must be a boolean")
		}
	}

	list, err := h.executor.ListObjections(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"notification_id": id,
		"objections":      list,
	})
}
