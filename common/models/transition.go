package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransitionRecord is an audit log entry for a committed status change
// Maps to: transition_log table
type TransitionRecord struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Kind     Kind      `db:"kind" json:"kind"`
	EntityID uuid.UUID `db:"entity_id" json:"entity_id"`

	FromState State `db:"from_state" json:"from_state"`
	ToState   State `db:"to_state" json:"to_state"`

	ActorID   string `db:"actor_id" json:"actor_id"`
	ActorRole *Role  `db:"actor_role" json:"actor_role,omitempty"`

	// Document sealed as part of this transition
	DocumentHash *string `db:"document_hash" json:"document_hash,omitempty"`

	// Reference number allocated as part of this transition
	ReferenceNo *string `db:"reference_no" json:"reference_no,omitempty"`

	// RFC 7396 merge patch from the previous entity snapshot to the new one
	Patch json.RawMessage `db:"patch" json:"patch,omitempty"`

	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
