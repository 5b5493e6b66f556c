package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

const documentColumns = `document_type, hash, entity_kind, entity_id, reference_no, file_path,
	media_type, size_bytes, qr_verification_url, superseded_by, issued_by, created_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var (
		d    models.Document
		kind string
	)
	if err := row.Scan(
		&d.DocumentType,
		&d.Hash,
		&kind,
		&d.EntityID,
		&d.ReferenceNo,
		&d.FilePath,
		&d.MediaType,
		&d.SizeBytes,
		&d.QRVerificationURL,
		&d.SupersededBy,
		&d.IssuedBy,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.EntityKind = models.Kind(kind)
	return &d, nil
}

// GetDocument retrieves the document record with this type and hash
func (r *Repository) GetDocument(ctx context.Context, documentType, hash string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM verifiable_document WHERE document_type = $1 AND hash = $2`
	d, err := scanDocument(r.db.QueryRow(ctx, query, documentType, hash))
	if err != nil {
		return nil, notFound(err, "document %s/%s", documentType, hash)
	}
	return d, nil
}

// SaveDocument inserts a document record. An existing (type, hash) is a conflict.
func (t *pgTx) SaveDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO verifiable_document (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.tx.Exec(ctx, query,
		doc.DocumentType,
		doc.Hash,
		string(doc.EntityKind),
		doc.EntityID,
		doc.ReferenceNo,
		doc.FilePath,
		doc.MediaType,
		doc.SizeBytes,
		doc.QRVerificationURL,
		doc.SupersededBy,
		doc.IssuedBy,
		doc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %s/%s: %w", doc.DocumentType, doc.Hash, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// SupersedeDocument points an old document record at its replacement
func (t *pgTx) SupersedeDocument(ctx context.Context, documentType, oldHash, newHash string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE verifiable_document SET superseded_by = $3
		WHERE document_type = $1 AND hash = $2
	`, documentType, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("failed to supersede document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s: %w", documentType, oldHash, apperr.ErrNotFound)
	}
	return nil
}
