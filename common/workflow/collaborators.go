package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/integrity"
	"github.com/landrecords/portal/common/models"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mocks

// RenderRequest asks the renderer for the bytes of one document
type RenderRequest struct {
	// Entity as it will be after the transition commits
	Entity       *models.Entity
	DocumentType string
	ReferenceNo  string
	IssuedAt     time.Time
	IssuedBy     string
}

// Rendered is a finished document ready to be sealed
type Rendered struct {
	Data      []byte
	MediaType string
}

// Renderer produces document bytes for an entity
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*Rendered, error)
}

// Sealer hashes and stores rendered bytes. *integrity.Sealer implements it.
type Sealer interface {
	SealAndStore(ctx context.Context, documentType, mediaType string, data []byte) (*integrity.Sealed, error)
}

// Event names carried by notifications
const (
	EventTransitioned     = "entity.transitioned"
	EventDocumentReissued = "document.reissued"
	EventObjectionFiled   = "objection.filed"
)

// Notification is a fire-and-forget message to one user
type Notification struct {
	UserID       string       `json:"user_id"`
	Event        string       `json:"event"`
	Kind         models.Kind  `json:"kind"`
	EntityID     uuid.UUID    `json:"entity_id"`
	From         models.State `json:"from,omitempty"`
	To           models.State `json:"to,omitempty"`
	ReferenceNo  *string      `json:"reference_no,omitempty"`
	DocumentHash *string      `json:"document_hash,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// Notifier delivers notifications. The executor never fails a committed
// transition because of a Notifier error.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
