package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/models"
)

// AppendTransition writes one audit log entry
func (t *pgTx) AppendTransition(ctx context.Context, rec *models.TransitionRecord) error {
	var role *string
	if rec.ActorRole != nil {
		s := string(*rec.ActorRole)
		role = &s
	}
	var patch any
	if len(rec.Patch) > 0 {
		patch = string(rec.Patch)
	}

	query := `
		INSERT INTO transition_log (id, kind, entity_id, from_state, to_state, actor_id,
			actor_role, document_hash, reference_no, patch, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
	`
	_, err := t.tx.Exec(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.EntityID,
		string(rec.FromState),
		string(rec.ToState),
		rec.ActorID,
		role,
		rec.DocumentHash,
		rec.ReferenceNo,
		patch,
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// ListTransitions returns an entity's audit log in commit order
func (r *Repository) ListTransitions(ctx context.Context, kind models.Kind, id uuid.UUID) ([]*models.TransitionRecord, error) {
	query := `
		SELECT id, kind, entity_id, from_state, to_state, actor_id, actor_role,
		       document_hash, reference_no, patch, occurred_at
		FROM transition_log
		WHERE kind = $1 AND entity_id = $2
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.TransitionRecord, 0)
	for rows.Next() {
		var (
			rec         models.TransitionRecord
			k, from, to string
			role        *string
			patch       []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&k,
			&rec.EntityID,
			&from,
			&to,
			&rec.ActorID,
			&role,
			&rec.DocumentHash,
			&rec.ReferenceNo,
			&patch,
			&rec.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		rec.Kind, rec.FromState, rec.ToState = models.Kind(k), models.State(from), models.State(to)
		if role != nil {
			ar := models.Role(*role)
			rec.ActorRole = &ar
		}
		if len(patch) > 0 {
			rec.Patch = patch
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return out, nil
}
