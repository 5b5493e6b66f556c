// Package memory is an in-process implementation of the workflow and draw
// stores. Units of work are serialised by one mutex and staged until commit,
// so readers never observe a partially applied transition.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

type entityKey struct {
	kind models.Kind
	id   uuid.UUID
}

type counterKey struct {
	name string
	year int
}

type documentKey struct {
	docType string
	hash    string
}

type state struct {
	entities     map[entityKey]*models.Entity
	users        map[string]models.User
	counters     map[counterKey]int64
	documents    map[documentKey]*models.Document
	transitions  map[entityKey][]*models.TransitionRecord
	applications map[string]*models.Application
	draws        map[uuid.UUID]*models.DrawAudit
}

func newState() state {
	return state{
		entities:     make(map[entityKey]*models.Entity),
		users:        make(map[string]models.User),
		counters:     make(map[counterKey]int64),
		documents:    make(map[documentKey]*models.Document),
		transitions:  make(map[entityKey][]*models.TransitionRecord),
		applications: make(map[string]*models.Application),
		draws:        make(map[uuid.UUID]*models.DrawAudit),
	}
}

// Store is safe for concurrent use
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
}

var (
	_ workflow.Store = (*Store)(nil)
	_ draw.Store     = (*Store)(nil)
	_ workflow.Tx    = (*tx)(nil)
	_ draw.Tx        = (*tx)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{data: newState()}
}

// UpsertUser creates or replaces a user
func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
	return nil
}

// CreateApplication adds an application to a scheme
func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	return s.run(ctx, func(ctx context.Context, t *tx) error { return t.CreateApplication(ctx, app) })
}

func (s *Store) GetEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.entities[entityKey{kind, id}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *Store) GetUserRole(ctx context.Context, userID string) (models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.users[userID]
	if !ok {
		return "", fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}
	return u.Role, nil
}

func (s *Store) ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return objections(s.data.entities, nil, filter), nil
}

func (s *Store) ListTransitions(ctx context.Context, kind models.Kind, id uuid.UUID) ([]*models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.data.transitions[entityKey{kind, id}]
	out := make([]*models.TransitionRecord, len(recs))
	for i, r := range recs {
		c := *r
		out[i] = &c
	}
	return out, nil
}

// GetDocument returns the document record with this type and hash
func (s *Store) GetDocument(ctx context.Context, documentType, hash string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data.documents[documentKey{documentType, hash}]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", documentType, hash, apperr.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (s *Store) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return applications(s.data.applications, nil, filter), nil
}

func (s *Store) GetDraw(ctx context.Context, id uuid.UUID) (*models.DrawAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.draws[id]
	if !ok {
		return nil, fmt.Errorf("draw %s: %w", id, apperr.ErrNotFound)
	}
	return cloneDraw(a), nil
}

func (s *Store) GetDrawForScheme(ctx context.Context, schemeID string) (*models.DrawAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.data.draws {
		if a.SchemeID == schemeID {
			return cloneDraw(a), nil
		}
	}
	return nil, fmt.Errorf("draw for scheme %s: %w", schemeID, apperr.ErrNotFound)
}

// InTx runs fn against a staged copy of the changes and applies them only if
// fn succeeds and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx workflow.Tx) error) error {
	return s.run(ctx, func(ctx context.Context, t *tx) error { return fn(ctx, t) })
}

// InDrawTx is InTx for draws
func (s *Store) InDrawTx(ctx context.Context, fn func(ctx context.Context, tx draw.Tx) error) error {
	return s.run(ctx, func(ctx context.Context, t *tx) error { return fn(ctx, t) })
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, t *tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{store: s, staged: newState()}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range t.staged.entities {
		s.data.entities[k] = v
	}
	for k, v := range t.staged.counters {
		s.data.counters[k] = v
	}
	for k, v := range t.staged.documents {
		s.data.documents[k] = v
	}
	for k, v := range t.staged.transitions {
		s.data.transitions[k] = append(s.data.transitions[k], v...)
	}
	for k, v := range t.staged.applications {
		s.data.applications[k] = v
	}
	for k, v := range t.staged.draws {
		s.data.draws[k] = v
	}
}

func objections(committed, staged map[entityKey]*models.Entity, filter models.ObjectionFilter) []*models.Objection {
	merged := make(map[entityKey]*models.Entity, len(committed))
	for k, e := range committed {
		merged[k] = e
	}
	for k, e := range staged {
		merged[k] = e
	}

	out := make([]*models.Objection, 0)
	for k, e := range merged {
		if k.kind != models.KindObjection || e.ParentID == nil || *e.ParentID != filter.NotificationID {
			continue
		}
		if filter.UnresolvedOnly && models.IsTerminalObjection(e.Status) {
			continue
		}
		out = append(out, models.ObjectionFromEntity(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func applications(committed, staged map[string]*models.Application, filter models.ApplicationFilter) []*models.Application {
	merged := make(map[string]*models.Application, len(committed))
	for k, a := range committed {
		merged[k] = a
	}
	for k, a := range staged {
		merged[k] = a
	}

	out := make([]*models.Application, 0)
	for _, a := range merged {
		if filter.SchemeID != "" && a.SchemeID != filter.SchemeID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneDraw(a *models.DrawAudit) *models.DrawAudit {
	c := *a
	c.Results = append([]models.DrawResult(nil), a.Results...)
	return &c
}

// tx stages writes; reads see staged values first. Only one tx is live at a
// time, so committed data cannot change underneath it.
type tx struct {
	store  *Store
	staged state
}

func (t *tx) entity(kind models.Kind, id uuid.UUID) (*models.Entity, bool) {
	k := entityKey{kind, id}
	if e, ok := t.staged.entities[k]; ok {
		return e, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	e, ok := t.store.data.entities[k]
	return e, ok
}

func (t *tx) LockEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	e, ok := t.entity(kind, id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return e.Clone(), nil
}

func (t *tx) ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return objections(t.store.data.entities, t.staged.entities, filter), nil
}

func (t *tx) NextSequenceValue(ctx context.Context, name string, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	k := counterKey{name, year}
	v, ok := t.staged.counters[k]
	if !ok {
		t.store.mu.RLock()
		v = t.store.data.counters[k]
		t.store.mu.RUnlock()
	}
	v++
	t.staged.counters[k] = v
	return v, nil
}

func (t *tx) CreateEntity(ctx context.Context, e *models.Entity) error {
	if _, exists := t.entity(e.Kind, e.ID); exists {
		return fmt.Errorf("%s %s: %w", e.Kind, e.ID, apperr.ErrConflict)
	}
	t.staged.entities[entityKey{e.Kind, e.ID}] = e.Clone()
	return nil
}

func (t *tx) UpdateEntity(ctx context.Context, upd workflow.EntityUpdate) (*models.Entity, error) {
	cur, ok := t.entity(upd.Kind, upd.ID)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", upd.Kind, upd.ID, apperr.ErrNotFound)
	}
	if cur.Status != upd.From || cur.Version != upd.ExpectedVersion {
		return nil, fmt.Errorf("%s %s at %s/v%d: %w", upd.Kind, upd.ID, cur.Status, cur.Version, apperr.ErrConflict)
	}

	next := cur.Clone()
	at := upd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if upd.To != cur.Status {
		next.Status = upd.To
		next.StateEnteredAt[upd.To] = at
	}
	if upd.ReferenceNo != nil {
		ref := *upd.ReferenceNo
		next.ReferenceNo = &ref
	}
	if upd.Document != nil {
		d := *upd.Document
		next.Document = &d
	}
	next.Version++
	next.UpdatedAt = at

	t.staged.entities[entityKey{upd.Kind, upd.ID}] = next
	return next.Clone(), nil
}

func (t *tx) document(docType, hash string) (*models.Document, bool) {
	k := documentKey{docType, hash}
	if d, ok := t.staged.documents[k]; ok {
		return d, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	d, ok := t.store.data.documents[k]
	return d, ok
}

func (t *tx) SaveDocument(ctx context.Context, doc *models.Document) error {
	if _, exists := t.document(doc.DocumentType, doc.Hash); exists {
		return fmt.Errorf("document %s/%s: %w", doc.DocumentType, doc.Hash, apperr.ErrConflict)
	}
	c := *doc
	t.staged.documents[documentKey{doc.DocumentType, doc.Hash}] = &c
	return nil
}

func (t *tx) SupersedeDocument(ctx context.Context, documentType, oldHash, newHash string) error {
	old, ok := t.document(documentType, oldHash)
	if !ok {
		return fmt.Errorf("document %s/%s: %w", documentType, oldHash, apperr.ErrNotFound)
	}
	c := *old
	c.SupersededBy = &newHash
	t.staged.documents[documentKey{documentType, oldHash}] = &c
	return nil
}

func (t *tx) AppendTransition(ctx context.Context, rec *models.TransitionRecord) error {
	k := entityKey{rec.Kind, rec.EntityID}
	c := *rec
	t.staged.transitions[k] = append(t.staged.transitions[k], &c)
	return nil
}

// LockScheme is a no-op: only one tx is live at a time
func (t *tx) LockScheme(ctx context.Context, schemeID string) error {
	return ctx.Err()
}

func (t *tx) SchemeDrawn(ctx context.Context, schemeID string) (bool, error) {
	for _, a := range t.staged.draws {
		if a.SchemeID == schemeID {
			return true, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, a := range t.store.data.draws {
		if a.SchemeID == schemeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return applications(t.store.data.applications, t.staged.applications, filter), nil
}

func (t *tx) CreateApplication(ctx context.Context, app *models.Application) error {
	_, exists := t.staged.applications[app.ID]
	if !exists {
		t.store.mu.RLock()
		_, exists = t.store.data.applications[app.ID]
		t.store.mu.RUnlock()
	}
	if exists {
		return fmt.Errorf("application %s: %w", app.ID, apperr.ErrConflict)
	}
	c := *app
	t.staged.applications[app.ID] = &c
	return nil
}

func (t *tx) SaveDraw(ctx context.Context, audit *models.DrawAudit) error {
	t.store.mu.RLock()
	for _, a := range t.store.data.draws {
		if a.SchemeID == audit.SchemeID {
			t.store.mu.RUnlock()
			return fmt.Errorf("scheme %s already drawn: %w", audit.SchemeID, apperr.ErrConflict)
		}
	}
	t.store.mu.RUnlock()
	for _, a := range t.staged.draws {
		if a.SchemeID == audit.SchemeID {
			return fmt.Errorf("scheme %s already drawn: %w", audit.SchemeID, apperr.ErrConflict)
		}
	}
	t.staged.draws[audit.DrawID] = cloneDraw(audit)
	return nil
}

func (t *tx) SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	app, ok := t.staged.applications[id]
	if !ok {
		t.store.mu.RLock()
		app, ok = t.store.data.applications[id]
		t.store.mu.RUnlock()
	}
	if !ok {
		return fmt.Errorf("application %s: %w", id, apperr.ErrNotFound)
	}
	c := *app
	c.Status = status
	t.staged.applications[id] = &c
	return nil
}
