package models

import (
	"time"

	"github.com/google/uuid"
)

// Objection is a statutory objection against a land notification for one
// parcel. Objections are stored as entities of KindObjection whose ParentID is
// the notification.
type Objection struct {
	ID             uuid.UUID `json:"id"`
	NotificationID uuid.UUID `json:"notification_id"`
	ParcelID       string    `json:"parcel_id"`
	Status         State     `json:"status"`
	Grounds        string    `json:"grounds,omitempty"`
	FiledBy        string    `json:"filed_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Attribute keys used when an objection is stored as an entity
const (
	AttrParcelID = "parcel_id"
	AttrGrounds  = "grounds"
)

// TerminalObjectionStates are the statuses that no longer block a notification
var TerminalObjectionStates = []State{StateResolved, StateRejected}

// IsTerminalObjection reports whether s no longer blocks objection resolution
func IsTerminalObjection(s State) bool {
	for _, t := range TerminalObjectionStates {
		if s == t {
			return true
		}
	}
	return false
}

// ObjectionFromEntity projects an objection entity into its domain view
func ObjectionFromEntity(e *Entity) *Objection {
	o := &Objection{
		ID:        e.ID,
		Status:    e.Status,
		FiledBy:   e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
	if e.ParentID != nil {
		o.NotificationID = *e.ParentID
	}
	if v, ok := e.Attributes[AttrParcelID].(string); ok {
		o.ParcelID = v
	}
	if v, ok := e.Attributes[AttrGrounds].(string); ok {
		o.Grounds = v
	}
	return o
}

// ObjectionFilter selects objections for a notification
type ObjectionFilter struct {
	NotificationID uuid.UUID

	// When true only objections in a non-terminal status are returned
	UnresolvedOnly bool
}
