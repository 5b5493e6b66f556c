package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// CreateRequest creates a workflow entity in its kind's initial state
type CreateRequest struct {
	Kind       models.Kind
	Type       string
	Attributes map[string]any
	ActorID    string
}

// Create inserts a new entity. Objections are filed with FileObjection.
func (x *Executor) Create(ctx context.Context, req CreateRequest) (*models.Entity, error) {
	initial, err := x.registry.Initial(req.Kind)
	if err != nil {
		return nil, err
	}
	if req.Kind == models.KindObjection {
		return nil, apperr.New(apperr.CodeInvalidArgument, "objections are filed against a notification")
	}
	if req.ActorID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "actor is required")
	}
	if req.Kind == models.KindLandNotification {
		if !models.NotificationType(req.Type).Valid() {
			return nil, apperr.Newf(apperr.CodeInvalidArgument, "notification type must be sec11 or sec19, got %q", req.Type)
		}
	} else if req.Type != "" {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "%s does not take a type", req.Kind)
	}

	now := x.now().UTC()
	e := &models.Entity{
		ID:             x.newID(),
		Kind:           req.Kind,
		Status:         initial,
		Type:           req.Type,
		Attributes:     req.Attributes,
		StateEnteredAt: map[models.State]time.Time{initial: now},
		Version:        1,
		CreatedBy:      req.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := x.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateEntity(ctx, e)
	}); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", req.Kind, err)
	}

	x.log.WithContext(ctx).WithEntity(string(e.Kind), e.ID.String()).WithActor(req.ActorID).
		Info("entity created", "status", e.Status, "type", e.Type)
	return e, nil
}

// FileObjectionRequest files an objection for one parcel
type FileObjectionRequest struct {
	NotificationID uuid.UUID
	ParcelID       string
	Grounds        string
	ActorID        string
}

// FileObjection records an objection against a notification. The
// notification must be in its objection window; the check and the insert
// happen under the notification's lock so they cannot race the resolution.
func (x *Executor) FileObjection(ctx context.Context, req FileObjectionRequest) (*models.Objection, error) {
	if strings.TrimSpace(req.ParcelID) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "parcel id is required")
	}
	if req.ActorID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "actor is required")
	}

	now := x.now().UTC()
	parent := req.NotificationID
	obj := &models.Entity{
		ID:       x.newID(),
		Kind:     models.KindObjection,
		Status:   models.StateReceived,
		ParentID: &parent,
		Attributes: map[string]any{
			models.AttrParcelID: req.ParcelID,
			models.AttrGrounds:  req.Grounds,
		},
		StateEnteredAt: map[models.State]time.Time{models.StateReceived: now},
		Version:        1,
		CreatedBy:      req.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var notification *models.Entity
	err := x.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.LockEntity(ctx, models.KindLandNotification, req.NotificationID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("notification %s not found", req.NotificationID))
			}
			return fmt.Errorf("failed to lock notification: %w", err)
		}
		if n.Status != models.StateObjectionWindowOpen {
			return apperr.Newf(apperr.CodeInvalidTransition, "objection window of notification %s is not open", n.ID).
				WithDetail("status", string(n.Status))
		}
		notification = n
		return tx.CreateEntity(ctx, obj)
	})
	if err != nil {
		return nil, err
	}

	x.log.WithContext(ctx).WithEntity(string(models.KindLandNotification), req.NotificationID.String()).
		WithActor(req.ActorID).Info("objection filed", "objection_id", obj.ID, "parcel_id", req.ParcelID)

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	x.deliver(nctx, Notification{
		Event:      EventObjectionFiled,
		Kind:       models.KindLandNotification,
		EntityID:   req.NotificationID,
		To:         notification.Status,
		OccurredAt: now,
	}, notification.CreatedBy)

	return models.ObjectionFromEntity(obj), nil
}

// ListObjections returns the objections of a notification
func (x *Executor) ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error) {
	if _, err := x.load(ctx, models.KindLandNotification, filter.NotificationID); err != nil {
		return nil, err
	}
	objs, err := x.store.ListObjections(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list objections: %w", err)
	}
	return objs, nil
}
