package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// CreateApplication adds an application to a scheme
func (r *Repository) CreateApplication(ctx context.Context, app *models.Application) error {
	return createApplication(ctx, r.db, app)
}

// ListApplications returns matching applications ordered by creation time, then id
func (r *Repository) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	return listApplications(ctx, r.db, filter)
}

// LockScheme takes a transaction-scoped advisory lock keyed on the scheme id
func (t *pgTx) LockScheme(ctx context.Context, schemeID string) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('scheme:' || $1))`, schemeID); err != nil {
		return fmt.Errorf("failed to lock scheme %s: %w", schemeID, err)
	}
	return nil
}

func (t *pgTx) SchemeDrawn(ctx context.Context, schemeID string) (bool, error) {
	var drawn bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM draw_audit WHERE scheme_id = $1)`, schemeID).Scan(&drawn)
	if err != nil {
		return false, fmt.Errorf("failed to check draw for scheme %s: %w", schemeID, err)
	}
	return drawn, nil
}

func (t *pgTx) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	return listApplications(ctx, t.tx, filter)
}

func (t *pgTx) CreateApplication(ctx context.Context, app *models.Application) error {
	return createApplication(ctx, t.tx, app)
}

func createApplication(ctx context.Context, q querier, app *models.Application) error {
	query := `
		INSERT INTO scheme_application (id, scheme_id, applicant_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query, app.ID, app.SchemeID, app.ApplicantName, string(app.Status), app.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("application %s: %w", app.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func listApplications(ctx context.Context, q querier, filter models.ApplicationFilter) ([]*models.Application, error) {
	query := `
		SELECT id, scheme_id, applicant_name, status, created_at
		FROM scheme_application
		WHERE ($1 = '' OR scheme_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at, id
	`
	rows, err := q.Query(ctx, query, filter.SchemeID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Application, 0)
	for rows.Next() {
		var (
			a      models.Application
			status string
		)
		if err := rows.Scan(&a.ID, &a.SchemeID, &a.ApplicantName, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		a.Status = models.ApplicationStatus(status)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return out, nil
}

const drawColumns = `draw_id, scheme_id, random_seed, selected_count, pool_size, audit_hash,
	reference_no, conducted_by, conducted_at`

func (r *Repository) getDraw(ctx context.Context, where string, arg any) (*models.DrawAudit, error) {
	var a models.DrawAudit
	err := r.db.QueryRow(ctx, `SELECT `+drawColumns+` FROM draw_audit WHERE `+where, arg).Scan(
		&a.DrawID,
		&a.SchemeID,
		&a.RandomSeed,
		&a.SelectedCount,
		&a.PoolSize,
		&a.AuditHash,
		&a.ReferenceNo,
		&a.ConductedBy,
		&a.ConductedAt,
	)
	if err != nil {
		return nil, notFound(err, "draw %v", arg)
	}

	rows, err := r.db.Query(ctx, `
		SELECT application_id, selected, draw_sequence, audit_hash
		FROM draw_result WHERE draw_id = $1 ORDER BY position
	`, a.DrawID)
	if err != nil {
		return nil, fmt.Errorf("failed to list draw results: %w", err)
	}
	defer rows.Close()

	a.Results = make([]models.DrawResult, 0, a.PoolSize)
	for rows.Next() {
		var res models.DrawResult
		if err := rows.Scan(&res.ApplicationID, &res.Selected, &res.DrawSequence, &res.AuditHash); err != nil {
			return nil, fmt.Errorf("failed to scan draw result: %w", err)
		}
		a.Results = append(a.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list draw results: %w", err)
	}
	return &a, nil
}

// GetDraw retrieves a draw audit with its results in shuffled order
func (r *Repository) GetDraw(ctx context.Context, id uuid.UUID) (*models.DrawAudit, error) {
	return r.getDraw(ctx, `draw_id = $1`, id)
}

// GetDrawForScheme retrieves the draw conducted for a scheme
func (r *Repository) GetDrawForScheme(ctx context.Context, schemeID string) (*models.DrawAudit, error) {
	return r.getDraw(ctx, `scheme_id = $1`, schemeID)
}

// SaveDraw inserts the audit and its results. A second draw for the same
// scheme violates the unique scheme_id and returns apperr.ErrConflict.
func (t *pgTx) SaveDraw(ctx context.Context, a *models.DrawAudit) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO draw_audit (`+drawColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		a.DrawID,
		a.SchemeID,
		a.RandomSeed,
		a.SelectedCount,
		a.PoolSize,
		a.AuditHash,
		a.ReferenceNo,
		a.ConductedBy,
		a.ConductedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("scheme %s already drawn: %w", a.SchemeID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save draw: %w", err)
	}

	_, err = t.tx.CopyFrom(ctx,
		pgx.Identifier{"draw_result"},
		[]string{"draw_id", "position", "application_id", "selected", "draw_sequence", "audit_hash"},
		pgx.CopyFromSlice(len(a.Results), func(i int) ([]any, error) {
			res := a.Results[i]
			return []any{a.DrawID, i, res.ApplicationID, res.Selected, res.DrawSequence, res.AuditHash}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to save draw results: %w", err)
	}
	return nil
}

// SetApplicationStatus updates one application's allotment status
func (t *pgTx) SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE scheme_application SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
