// Package workflow executes state transitions of workflow entities.
//
// The Executor is the only writer of entity status. Each transition is
// validated against the statemachine registry and the actor's role, then
// applied in one unit of work together with its side effects: a reference
// number, a sealed document and an audit record. Nothing is persisted when
// any step fails.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/metrics"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/sequence"
	"github.com/landrecords/portal/common/statemachine"
)

const notifyTimeout = 5 * time.Second

// Executor applies workflow transitions
type Executor struct {
	store    Store
	registry *statemachine.Registry
	renderer Renderer
	sealer   Sealer
	notifier Notifier
	log      *logger.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option configures an Executor
type Option func(*Executor)

// WithMetrics records transition metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Executor) { x.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(x *Executor) { x.now = now }
}

// WithIDs replaces uuid.New
func WithIDs(newID func() uuid.UUID) Option {
	return func(x *Executor) { x.newID = newID }
}

// WithTracer replaces the global otel tracer
func WithTracer(t trace.Tracer) Option {
	return func(x *Executor) { x.tracer = t }
}

// NewExecutor creates an executor
func NewExecutor(store Store, registry *statemachine.Registry, renderer Renderer, sealer Sealer, notifier Notifier, log *logger.Logger, opts ...Option) *Executor {
	x := &Executor{
		store:    store,
		registry: registry,
		renderer: renderer,
		sealer:   sealer,
		notifier: notifier,
		log:      log,
		tracer:   otel.Tracer("github.com/landrecords/portal/common/workflow"),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Registry returns the registry the executor validates against
func (x *Executor) Registry() *statemachine.Registry {
	return x.registry
}

// TransitionRequest asks to move one entity to Target
type TransitionRequest struct {
	Kind     models.Kind
	EntityID uuid.UUID
	Target   models.State
	ActorID  string
}

// Result is a committed change
type Result struct {
	Entity   *models.Entity           `json:"entity"`
	Document *models.Document         `json:"document,omitempty"`
	Record   *models.TransitionRecord `json:"record"`
}

// Transition validates and applies req. Errors carry an apperr code:
// InvalidTransition, Unauthorized, ObjectionsPending, NotFound,
// ConcurrencyConflict or IntegrityMismatch.
func (x *Executor) Transition(ctx context.Context, req TransitionRequest) (res *Result, err error) {
	start := time.Now()
	ctx, span := x.tracer.Start(ctx, "workflow.Transition", trace.WithAttributes(
		attribute.String("workflow.kind", string(req.Kind)),
		attribute.String("workflow.entity_id", req.EntityID.String()),
		attribute.String("workflow.target", string(req.Target)),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		x.metrics.RecordTransition(string(req.Kind), string(req.Target), outcome, time.Since(start))
		span.End()
	}()

	log := x.log.WithContext(ctx).WithEntity(string(req.Kind), req.EntityID.String()).WithActor(req.ActorID)

	entity, err := x.load(ctx, req.Kind, req.EntityID)
	if err != nil {
		return nil, err
	}
	if err := x.registry.Allowed(entity, req.Target); err != nil {
		return nil, err
	}
	role, err := x.authorize(ctx, req.Kind, req.Target, req.ActorID)
	if err != nil {
		return nil, err
	}

	err = x.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := x.relock(ctx, tx, entity); err != nil {
			return err
		}
		if req.Kind == models.KindLandNotification && req.Target == models.StateObjectionResolved {
			if err := checkObjections(ctx, tx, entity.ID); err != nil {
				return err
			}
		}

		now := x.now().UTC()
		after := entity.Clone()
		after.Status = req.Target
		after.StateEnteredAt[req.Target] = now
		after.UpdatedAt = now
		after.Version++

		var doc *models.Document
		if ef, ok := effectFor(req.Kind, req.Target); ok {
			ref, err := x.allocate(ctx, tx, ef.prefix(entity), now.Year())
			if err != nil {
				return err
			}
			after.ReferenceNo = &ref
			if doc, err = x.produce(ctx, after, ef.documentType, ref, req.ActorID, now); err != nil {
				return err
			}
			if err := tx.SaveDocument(ctx, doc); err != nil {
				return fmt.Errorf("failed to save document record: %w", err)
			}
			after.Document = doc.Ref()
		}

		updated, err := x.update(ctx, tx, entity, after)
		if err != nil {
			return err
		}
		rec, err := x.appendRecord(ctx, tx, entity, updated, req.ActorID, role, doc, now)
		if err != nil {
			return err
		}
		res = &Result{Entity: updated, Document: doc, Record: rec}
		return nil
	})
	if err != nil {
		if !apperr.HasCode(err, apperr.CodeInternal) {
			log.Warn("transition rejected", "from", entity.Status, "to", req.Target, "code", apperr.CodeOf(err))
		} else {
			log.Error("transition failed", "from", entity.Status, "to", req.Target, "error", err)
		}
		return nil, err
	}

	log.Info("transition committed", "from", entity.Status, "to", req.Target, "version", res.Entity.Version)
	x.notify(ctx, entity, res, EventTransitioned, req.ActorID)
	return res, nil
}

// NextStates returns the states the entity can move to right now, guards
// included. Role gates are not applied.
func (x *Executor) NextStates(ctx context.Context, kind models.Kind, id uuid.UUID) ([]models.State, error) {
	entity, err := x.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return x.registry.ValidNextStatesFor(entity)
}

// Get loads one entity
func (x *Executor) Get(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	return x.load(ctx, kind, id)
}

// History returns the audit trail of an entity, oldest first
func (x *Executor) History(ctx context.Context, kind models.Kind, id uuid.UUID) ([]*models.TransitionRecord, error) {
	if _, err := x.load(ctx, kind, id); err != nil {
		return nil, err
	}
	recs, err := x.store.ListTransitions(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return recs, nil
}

func (x *Executor) load(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	if _, err := x.registry.Definition(kind); err != nil {
		return nil, err
	}
	e, err := x.store.GetEntity(ctx, kind, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("%s %s not found", kind, id))
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	return e, nil
}

// authorize enforces the role gate of target. It returns the actor's role
// when it had to be looked up.
func (x *Executor) authorize(ctx context.Context, kind models.Kind, target models.State, actorID string) (*models.Role, error) {
	gate := x.registry.Gate(kind, target)
	if len(gate) == 0 {
		return nil, nil
	}
	if actorID == "" {
		return nil, apperr.Newf(apperr.CodeUnauthorized, "entering %s requires an authenticated actor", target)
	}
	role, err := x.store.GetUserRole(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeUnauthorized, "unknown actor %q", actorID)
		}
		return nil, fmt.Errorf("failed to load actor role: %w", err)
	}
	if !x.registry.RoleAllowed(kind, target, role) {
		return nil, apperr.Newf(apperr.CodeUnauthorized, "role %s may not move %s to %s", role, kind, target).
			WithDetail("actor_role", string(role)).
			WithDetail("required_roles", gate)
	}
	return &role, nil
}

// relock re-reads the entity inside the unit of work and fails if it moved
// since it was validated.
func (x *Executor) relock(ctx context.Context, tx Tx, seen *models.Entity) error {
	current, err := tx.LockEntity(ctx, seen.Kind, seen.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("%s %s not found", seen.Kind, seen.ID))
		}
		return fmt.Errorf("failed to lock %s %s: %w", seen.Kind, seen.ID, err)
	}
	if current.Status != seen.Status || current.Version != seen.Version {
		return concurrencyConflict(seen, nil)
	}
	return nil
}

func checkObjections(ctx context.Context, tx Tx, notificationID uuid.UUID) error {
	pending, err := tx.ListObjections(ctx, models.ObjectionFilter{NotificationID: notificationID, UnresolvedOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list objections: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	ids := make([]string, len(pending))
	for i, o := range pending {
		ids[i] = o.ID.String()
	}
	return apperr.Newf(apperr.CodeObjectionsPending, "%d objection(s) are still unresolved", len(pending)).
		WithDetail("count", len(pending)).
		WithDetail("objection_ids", ids)
}

// allocate takes the next reference number inside the unit of work so a
// rolled back transition does not leave a gap.
func (x *Executor) allocate(ctx context.Context, tx Tx, prefix string, year int) (string, error) {
	gen := sequence.NewGenerator(sequence.CounterFunc(tx.NextSequenceValue), x.metrics)
	ref, err := gen.NextFormatted(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate reference number: %w", err)
	}
	return ref, nil
}

// produce renders and seals a document for the post-transition entity
func (x *Executor) produce(ctx context.Context, after *models.Entity, docType, ref, actorID string, now time.Time) (*models.Document, error) {
	rendered, err := x.renderer.Render(ctx, RenderRequest{
		Entity:       after,
		DocumentType: docType,
		ReferenceNo:  ref,
		IssuedAt:     now,
		IssuedBy:     actorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", docType, err)
	}

	sealed, err := x.sealer.SealAndStore(ctx, docType, rendered.MediaType, rendered.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to seal %s: %w", docType, err)
	}

	refCopy := ref
	qr := sealed.QRVerificationURL
	doc := &models.Document{
		Hash:              sealed.Hash,
		DocumentType:      docType,
		EntityKind:        after.Kind,
		EntityID:          after.ID,
		ReferenceNo:       &refCopy,
		FilePath:          sealed.FilePath,
		MediaType:         sealed.MediaType,
		SizeBytes:         sealed.SizeBytes,
		QRVerificationURL: &qr,
		IssuedBy:          actorID,
		CreatedAt:         now,
	}
	return doc, nil
}

func (x *Executor) update(ctx context.Context, tx Tx, before, after *models.Entity) (*models.Entity, error) {
	updated, err := tx.UpdateEntity(ctx, EntityUpdate{
		Kind:            before.Kind,
		ID:              before.ID,
		From:            before.Status,
		ExpectedVersion: before.Version,
		To:              after.Status,
		ReferenceNo:     after.ReferenceNo,
		Document:        after.Document,
		At:              after.UpdatedAt,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, concurrencyConflict(before, err)
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("%s %s not found", before.Kind, before.ID))
		}
		return nil, fmt.Errorf("failed to update %s %s: %w", before.Kind, before.ID, err)
	}
	return updated, nil
}

func (x *Executor) appendRecord(ctx context.Context, tx Tx, before, after *models.Entity, actorID string, role *models.Role, doc *models.Document, now time.Time) (*models.TransitionRecord, error) {
	patch, err := MergePatch(before, after)
	if err != nil {
		return nil, err
	}
	rec := &models.TransitionRecord{
		ID:          x.newID(),
		Kind:        before.Kind,
		EntityID:    before.ID,
		FromState:   before.Status,
		ToState:     after.Status,
		ActorID:     actorID,
		ActorRole:   role,
		ReferenceNo: after.ReferenceNo,
		Patch:       patch,
		OccurredAt:  now,
	}
	if doc != nil {
		h := doc.Hash
		rec.DocumentHash = &h
	}
	if err := tx.AppendTransition(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append transition record: %w", err)
	}
	return rec, nil
}

// MergePatch returns the RFC 7396 merge patch turning before into after
func MergePatch(before, after *models.Entity) (json.RawMessage, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	b, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}
	return patch, nil
}

// notify informs the entity's creator and the actor. Failures are logged
// and counted, never returned.
func (x *Executor) notify(ctx context.Context, before *models.Entity, res *Result, event, actorID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	n := Notification{
		Event:       event,
		Kind:        res.Entity.Kind,
		EntityID:    res.Entity.ID,
		From:        before.Status,
		To:          res.Entity.Status,
		ReferenceNo: res.Entity.ReferenceNo,
		OccurredAt:  res.Record.OccurredAt,
	}
	if res.Document != nil {
		h := res.Document.Hash
		n.DocumentHash = &h
	}
	x.deliver(ctx, n, before.CreatedBy, actorID)
}

func (x *Executor) deliver(ctx context.Context, n Notification, recipients ...string) {
	if x.notifier == nil {
		return
	}
	seen := make(map[string]bool, len(recipients))
	for _, userID := range recipients {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		n.UserID = userID
		if err := x.notifier.Notify(ctx, n); err != nil {
			x.metrics.RecordNotifyFailure()
			x.log.Warn("notification dropped", "user_id", userID, "event", n.Event, "entity_id", n.EntityID, "error", err)
		}
	}
}

func concurrencyConflict(e *models.Entity, cause error) *apperr.Error {
	err := apperr.Newf(apperr.CodeConcurrencyConflict, "%s %s changed concurrently, reload and retry", e.Kind, e.ID).
		WithDetail("expected_status", string(e.Status)).
		WithDetail("expected_version", e.Version)
	err.Err = cause
	return err
}
