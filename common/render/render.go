// Package render produces the bytes of workflow documents.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

// MediaType of documents produced by JSONRenderer
const MediaType = "application/json"

// titles printed on each document type
var titles = map[string]string{
	models.DocNotification:          "Land Acquisition Notification",
	models.DocAwardOrder:            "Compensation Award Order",
	models.DocPossessionCertificate: "Possession Certificate",
	models.DocSIAReport:             "Social Impact Assessment Report",
}

type document struct {
	Title        string         `json:"title"`
	DocumentType string         `json:"documentType"`
	ReferenceNo  string         `json:"referenceNo,omitempty"`
	EntityKind   models.Kind    `json:"entityKind"`
	EntityID     uuid.UUID      `json:"entityId"`
	Section      string         `json:"section,omitempty"`
	Status       models.State   `json:"status"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	IssuedAt     string         `json:"issuedAt"`
	IssuedBy     string         `json:"issuedBy"`
}

// JSONRenderer renders documents as RFC 8785 canonical JSON. The same input
// always yields the same bytes. The verification hash is not part of the
// output; it is computed over it.
type JSONRenderer struct{}

// NewJSONRenderer creates the default renderer
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

var _ workflow.Renderer = (*JSONRenderer)(nil)

func (r *JSONRenderer) Render(ctx context.Context, req workflow.RenderRequest) (*workflow.Rendered, error) {
	if req.Entity == nil {
		return nil, fmt.Errorf("render %s: nil entity", req.DocumentType)
	}
	title, ok := titles[req.DocumentType]
	if !ok {
		return nil, fmt.Errorf("render: unknown document type %q", req.DocumentType)
	}

	raw, err := json.Marshal(document{
		Title:        title,
		DocumentType: req.DocumentType,
		ReferenceNo:  req.ReferenceNo,
		EntityKind:   req.Entity.Kind,
		EntityID:     req.Entity.ID,
		Section:      req.Entity.Type,
		Status:       req.Entity.Status,
		Attributes:   req.Entity.Attributes,
		IssuedAt:     req.IssuedAt.UTC().Format(time.RFC3339Nano),
		IssuedBy:     req.IssuedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", req.DocumentType, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize %s: %w", req.DocumentType, err)
	}
	return &workflow.Rendered{Data: canonical, MediaType: MediaType}, nil
}
