package draw

import (
	"context"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/models"
)

// Store persists applications and draw audits. Lookups return an error
// wrapping apperr.ErrNotFound when nothing matches.
type Store interface {
	// ListApplications returns matching applications in a stable order
	// (creation time, then id) so a draw can be replayed over the same pool.
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
	GetDraw(ctx context.Context, id uuid.UUID) (*models.DrawAudit, error)
	GetDrawForScheme(ctx context.Context, schemeID string) (*models.DrawAudit, error)
	InDrawTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of a draw and of application intake. Callers take
// LockScheme first so intake and the draw for one scheme never interleave.
type Tx interface {
	// LockScheme holds the scheme until the unit of work ends
	LockScheme(ctx context.Context, schemeID string) error
	SchemeDrawn(ctx context.Context, schemeID string) (bool, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	NextSequenceValue(ctx context.Context, name string, year int) (int64, error)

	// SaveDraw fails with apperr.ErrConflict if the scheme was already drawn
	SaveDraw(ctx context.Context, audit *models.DrawAudit) error
	SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}
