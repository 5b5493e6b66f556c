package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a workflow entity (SIA, land notification, award, possession or
// objection). Its status only moves through the transition executor.
// Maps to: workflow_entity table
type Entity struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Kind Kind      `db:"kind" json:"kind"`

	// Current status, always a member of the kind's declared states
	Status State `db:"status" json:"status"`

	// Notification section (sec11/sec19); empty for other kinds
	Type string `db:"entity_type" json:"type,omitempty"`

	// Owning entity, e.g. the notification an objection was filed against
	ParentID *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`

	// Human-readable reference number assigned at publish/issue time
	// Examples: 'SEC11-2024-007', 'AWARD-2025-001'
	ReferenceNo *string `db:"reference_no" json:"reference_no,omitempty"`

	// Free-form domain fields (survey numbers, amounts, village...)
	Attributes map[string]any `db:"attributes" json:"attributes,omitempty"`

	// Current sealed document, if the entity has one
	Document *DocumentRef `db:"-" json:"document,omitempty"`

	// When each state was last entered
	StateEnteredAt map[State]time.Time `db:"state_entered_at" json:"state_entered_at"`

	// Optimistic locking version, bumped on every status or document change
	Version int64 `db:"version" json:"version"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentRef points an entity at its current sealed artifact
type DocumentRef struct {
	Hash         string `db:"document_hash" json:"hash"`
	DocumentType string `db:"document_type" json:"document_type"`
	FilePath     string `db:"document_path" json:"file_path"`
}

// History returns the states this entity has entered, in entry order
func (e *Entity) History() []State {
	states := make([]State, 0, len(e.StateEnteredAt))
	for s := range e.StateEnteredAt {
		states = append(states, s)
	}
	// insertion sort by entry time; at most a dozen states
	for i := 1; i < len(states); i++ {
		for j := i; j > 0 && e.StateEnteredAt[states[j]].Before(e.StateEnteredAt[states[j-1]]); j-- {
			states[j], states[j-1] = states[j-1], states[j]
		}
	}
	return states
}

// HasEntered reports whether the entity has ever entered s
func (e *Entity) HasEntered(s State) bool {
	_, ok := e.StateEnteredAt[s]
	return ok
}

// Clone returns a deep-enough copy for snapshotting before mutation
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Attributes != nil {
		c.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	c.StateEnteredAt = make(map[State]time.Time, len(e.StateEnteredAt))
	for k, v := range e.StateEnteredAt {
		c.StateEnteredAt[k] = v
	}
	if e.Document != nil {
		d := *e.Document
		c.Document = &d
	}
	if e.ParentID != nil {
		p := *e.ParentID
		c.ParentID = &p
	}
	if e.ReferenceNo != nil {
		r := *e.ReferenceNo
		c.ReferenceNo = &r
	}
	return &c
}
