package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/models"
)

// Store is the persistence collaborator of the executor. Lookups return an
// error wrapping apperr.ErrNotFound when the record does not exist.
type Store interface {
	GetEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error)
	GetUserRole(ctx context.Context, userID string) (models.Role, error)
	ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error)
	ListTransitions(ctx context.Context, kind models.Kind, id uuid.UUID) ([]*models.TransitionRecord, error)

	// InTx runs fn as one unit of work. If fn returns an error nothing it
	// wrote is kept.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of a unit of work
type Tx interface {
	// LockEntity reads the entity and holds it until the unit ends
	LockEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error)

	ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error)

	// NextSequenceValue increments (name, year), creating it at zero first
	NextSequenceValue(ctx context.Context, name string, year int) (int64, error)

	CreateEntity(ctx context.Context, e *models.Entity) error

	// UpdateEntity writes status, reference number and document pointer only
	// if the stored entity still has (From, ExpectedVersion). A miss returns
	// an error wrapping apperr.ErrConflict.
	UpdateEntity(ctx context.Context, upd EntityUpdate) (*models.Entity, error)

	SaveDocument(ctx context.Context, doc *models.Document) error
	SupersedeDocument(ctx context.Context, documentType, oldHash, newHash string) error
	AppendTransition(ctx context.Context, rec *models.TransitionRecord) error
}

// EntityUpdate is a compare-and-swap write of an entity
type EntityUpdate struct {
	Kind            models.Kind
	ID              uuid.UUID
	From            models.State
	ExpectedVersion int64

	To          models.State
	ReferenceNo *string
	Document    *models.DocumentRef
	At          time.Time
}
