package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

const entityColumns = `kind, id, status, entity_type, parent_id, reference_no, attributes,
	document_type, document_hash, document_path, state_entered_at, version,
	created_by, created_at, updated_at`

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var (
		e                         models.Entity
		kind, status              string
		docType, docHash, docPath *string
	)
	if err := row.Scan(
		&kind,
		&e.ID,
		&status,
		&e.Type,
		&e.ParentID,
		&e.ReferenceNo,
		&e.Attributes,
		&docType,
		&docHash,
		&docPath,
		&e.StateEnteredAt,
		&e.Version,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Kind = models.Kind(kind)
	e.Status = models.State(status)
	if docHash != nil {
		e.Document = &models.DocumentRef{Hash: *docHash}
		if docType != nil {
			e.Document.DocumentType = *docType
		}
		if docPath != nil {
			e.Document.FilePath = *docPath
		}
	}
	if e.StateEnteredAt == nil {
		e.StateEnteredAt = map[models.State]time.Time{}
	}
	return &e, nil
}

func getEntity(ctx context.Context, q querier, kind models.Kind, id uuid.UUID, lock bool) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM workflow_entity WHERE kind = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	e, err := scanEntity(q.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		return nil, notFound(err, "%s %s", kind, id)
	}
	return e, nil
}

// GetEntity retrieves an entity by kind and id
func (r *Repository) GetEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	return getEntity(ctx, r.db, kind, id, false)
}

// LockEntity reads the entity with SELECT ... FOR UPDATE
func (t *pgTx) LockEntity(ctx context.Context, kind models.Kind, id uuid.UUID) (*models.Entity, error) {
	return getEntity(ctx, t.tx, kind, id, true)
}

// CreateEntity inserts a new entity
func (t *pgTx) CreateEntity(ctx context.Context, e *models.Entity) error {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	entered := e.StateEnteredAt
	if entered == nil {
		entered = map[models.State]time.Time{}
	}
	var docType, docHash, docPath *string
	if e.Document != nil {
		docType, docHash, docPath = &e.Document.DocumentType, &e.Document.Hash, &e.Document.FilePath
	}

	query := `
		INSERT INTO workflow_entity (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := t.tx.Exec(ctx, query,
		string(e.Kind),
		e.ID,
		string(e.Status),
		e.Type,
		e.ParentID,
		e.ReferenceNo,
		attrs,
		docType,
		docHash,
		docPath,
		entered,
		e.Version,
		e.CreatedBy,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", e.Kind, e.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// UpdateEntity is the compare-and-swap write of status, reference number and
// document pointer.
func (t *pgTx) UpdateEntity(ctx context.Context, upd workflow.EntityUpdate) (*models.Entity, error) {
	at := upd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entered, err := json.Marshal(map[string]time.Time{string(upd.To): at})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state entry: %w", err)
	}
	var docType, docHash, docPath *string
	if upd.Document != nil {
		docType, docHash, docPath = &upd.Document.DocumentType, &upd.Document.Hash, &upd.Document.FilePath
	}

	query := `
		UPDATE workflow_entity
		SET status = $4,
		    state_entered_at = CASE WHEN status <> $4 THEN state_entered_at || $5::jsonb ELSE state_entered_at END,
		    reference_no = COALESCE($6, reference_no),
		    document_type = COALESCE($7, document_type),
		    document_hash = COALESCE($8, document_hash),
		    document_path = COALESCE($9, document_path),
		    version = version + 1,
		    updated_at = $10
		WHERE kind = $1 AND id = $2 AND status = $3 AND version = $11
		RETURNING ` + entityColumns

	e, err := scanEntity(t.tx.QueryRow(ctx, query,
		string(upd.Kind),
		upd.ID,
		string(upd.From),
		string(upd.To),
		string(entered),
		upd.ReferenceNo,
		docType,
		docHash,
		docPath,
		at,
		upd.ExpectedVersion,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := getEntity(ctx, t.tx, upd.Kind, upd.ID, false); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%s %s not at %s/v%d: %w", upd.Kind, upd.ID, upd.From, upd.ExpectedVersion, apperr.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	return e, nil
}

func listObjections(ctx context.Context, q querier, filter models.ObjectionFilter) ([]*models.Objection, error) {
	query := `SELECT ` + entityColumns + `
		FROM workflow_entity
		WHERE kind = $1 AND parent_id = $2`
	args := []any{string(models.KindObjection), filter.NotificationID}
	if filter.UnresolvedOnly {
		terminal := make([]string, len(models.TerminalObjectionStates))
		for i, s := range models.TerminalObjectionStates {
			terminal[i] = string(s)
		}
		query += ` AND NOT (status = ANY($3))`
		args = append(args, terminal)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objections: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Objection, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objection: %w", err)
		}
		out = append(out, models.ObjectionFromEntity(e))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list objections: %w", err)
	}
	return out, nil
}

// ListObjections lists objections filed against a notification
func (r *Repository) ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error) {
	return listObjections(ctx, r.db, filter)
}

// ListObjections reads objections inside the transaction
func (t *pgTx) ListObjections(ctx context.Context, filter models.ObjectionFilter) ([]*models.Objection, error) {
	return listObjections(ctx, t.tx, filter)
}
