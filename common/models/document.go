package models

import (
	"time"

	"github.com/google/uuid"
)

// Document types issued by workflow transitions
const (
	DocNotification          = "notification"
	DocAwardOrder            = "award_order"
	DocPossessionCertificate = "possession_certificate"
	DocSIAReport             = "sia_report"
)

// Document is a sealed, verifiable artifact. The hash is the hex SHA-256 of
// the bytes stored at FilePath; the file is never rewritten in place.
// Maps to: verifiable_document table
type Document struct {
	// Hex SHA-256 of the rendered bytes
	Hash string `db:"hash" json:"hash"`

	// Examples: 'notification', 'award_order', 'possession_certificate'
	DocumentType string `db:"document_type" json:"document_type"`

	EntityKind Kind      `db:"entity_kind" json:"entity_kind"`
	EntityID   uuid.UUID `db:"entity_id" json:"entity_id"`

	// Reference number printed on the document, if any
	ReferenceNo *string `db:"reference_no" json:"reference_no,omitempty"`

	FilePath  string `db:"file_path" json:"file_path"`
	MediaType string `db:"media_type" json:"media_type"`
	SizeBytes int64  `db:"size_bytes" json:"size_bytes"`

	// Public verification pointer (detached from the hashed bytes)
	QRVerificationURL *string `db:"qr_verification_url" json:"qr_verification_url,omitempty"`

	// Set when a reissue replaced this artifact
	SupersededBy *string `db:"superseded_by" json:"superseded_by,omitempty"`

	IssuedBy  string    `db:"issued_by" json:"issued_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ref returns the entity-side pointer to this document
func (d *Document) Ref() *DocumentRef {
	return &DocumentRef{Hash: d.Hash, DocumentType: d.DocumentType, FilePath: d.FilePath}
}

// VerificationResult is returned by the public verification endpoint
type VerificationResult struct {
	// A document record with this hash and type exists
	Verified bool `json:"verified"`

	// The stored bytes still hash to the recorded value
	PDFVerified bool `json:"pdfVerified"`

	Metadata *Document `json:"metadata,omitempty"`
}
