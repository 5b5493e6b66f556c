package service

import (
	"context"
	"errors"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/integrity"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/models"
)

// DocumentStore looks up sealed document records
type DocumentStore interface {
	GetDocument(ctx context.Context, documentType, hash string) (*models.Document, error)
}

// DocumentService answers public verification requests
type DocumentService struct {
	store  DocumentStore
	sealer *integrity.Sealer
	log    *logger.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(store DocumentStore, sealer *integrity.Sealer, log *logger.Logger) *DocumentService {
	return &DocumentService{store: store, sealer: sealer, log: log}
}

// Verify reports whether a document with this type and hash was issued and
// whether the stored file still hashes to it. The file is re-read on every
// call. An unknown hash is not an error.
func (s *DocumentService) Verify(ctx context.Context, documentType, hash string) (*models.VerificationResult, error) {
	if !integrity.ValidHash(hash) {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "%q is not a sha256 hex digest", hash)
	}

	doc, err := s.store.GetDocument(ctx, documentType, hash)
	if errors.Is(err, apperr.ErrNotFound) {
		return &models.VerificationResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.sealer.Verify(doc.FilePath, doc.Hash)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to read document")
	}
	if !ok {
		s.log.WithContext(ctx).Warn("document integrity mismatch",
			"document_type", documentType,
			"hash", hash,
			"path", doc.FilePath,
		)
	}

	return &models.VerificationResult{
		Verified:    true,
		PDFVerified: ok,
		Metadata:    doc,
	}, nil
}
