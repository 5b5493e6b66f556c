package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/metrics"
)

// Sealed describes an artifact written by SealAndStore
type Sealed struct {
	Hash              string `json:"hash"`
	DocumentType      string `json:"documentType"`
	FilePath          string `json:"filePath"`
	MediaType         string `json:"mediaType"`
	SizeBytes         int64  `json:"sizeBytes"`
	QRVerificationURL string `json:"qrVerificationUrl"`
}

// Sealer stores sealed artifacts under a content-addressed directory tree:
// <root>/<documentType>/<hash><ext>. Files are never rewritten.
type Sealer struct {
	root          string
	verifyBaseURL string
	metrics       *metrics.Metrics
}

// NewSealer creates a sealer rooted at root. m may be nil.
func NewSealer(root, verifyBaseURL string, m *metrics.Metrics) *Sealer {
	return &Sealer{
		root:          root,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		metrics:       m,
	}
}

// Root returns the storage root
func (s *Sealer) Root() string {
	return s.root
}

// VerificationURL returns the public verification URL for a document
func (s *Sealer) VerificationURL(documentType, hash string) string {
	return fmt.Sprintf("%s/verify/%s/%s", s.verifyBaseURL, documentType, hash)
}

// PathFor returns where an artifact with this hash is stored
func (s *Sealer) PathFor(documentType, hash, mediaType string) string {
	return filepath.Join(s.root, documentType, hash+extension(mediaType))
}

// SealAndStore hashes data, writes it immutably, re-reads the written file
// and checks it against the hash. A fresh artifact that fails re-verification
// is an IntegrityMismatch. Storing identical bytes twice is a no-op.
func (s *Sealer) SealAndStore(ctx context.Context, documentType, mediaType string, data []byte) (*Sealed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if documentType == "" || strings.ContainsAny(documentType, `/\.`) {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "invalid document type %q", documentType)
	}

	hash := Seal(data)
	path := s.PathFor(documentType, hash, mediaType)

	if err := writeOnce(path, data); err != nil {
		return nil, err
	}

	ok, err := Verify(path, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordVerification("mismatch")
		return nil, apperr.Newf(apperr.CodeIntegrityMismatch, "stored %s does not match its seal", documentType).
			WithDetail("hash", hash).
			WithDetail("path", path)
	}

	sealed := &Sealed{
		Hash:              hash,
		DocumentType:      documentType,
		FilePath:          path,
		MediaType:         mediaType,
		SizeBytes:         int64(len(data)),
		QRVerificationURL: s.VerificationURL(documentType, hash),
	}
	if err := s.writeRecord(sealed); err != nil {
		return nil, err
	}

	s.metrics.RecordSeal(documentType)
	return sealed, nil
}

// Verify checks the artifact at path and records the outcome
func (s *Sealer) Verify(path, expected string) (bool, error) {
	ok, err := Verify(path, expected)
	switch {
	case err != nil:
		s.metrics.RecordVerification("error")
	case ok:
		s.metrics.RecordVerification("verified")
	default:
		s.metrics.RecordVerification("mismatch")
	}
	return ok, err
}

// RecordPath returns the path of the detached record for an artifact
func RecordPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".seal.json"
}

// DetachedRecord renders the canonical (RFC 8785) JSON record stored next to
// an artifact. It carries the hash and verification pointer outside the
// hashed bytes.
func DetachedRecord(sealed *Sealed) ([]byte, error) {
	raw, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seal record: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize seal record: %w", err)
	}
	return canonical, nil
}

// ReadRecord loads the detached record stored next to an artifact
func ReadRecord(artifactPath string) (*Sealed, error) {
	raw, err := os.ReadFile(RecordPath(artifactPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrNotFound, apperr.CodeNotFound, "seal record not found")
		}
		return nil, fmt.Errorf("failed to read seal record: %w", err)
	}
	var sealed Sealed
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, fmt.Errorf("failed to decode seal record: %w", err)
	}
	return &sealed, nil
}

func (s *Sealer) writeRecord(sealed *Sealed) error {
	record, err := DetachedRecord(sealed)
	if err != nil {
		return err
	}
	return writeOnce(RecordPath(sealed.FilePath), record)
}

// writeOnce writes data to path through a temp file and rename. An existing
// file is left untouched.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".seal-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o444); err != nil {
		return fmt.Errorf("failed to mark artifact read-only: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "application/json":
		return ".json"
	case "text/plain", "text/plain; charset=utf-8":
		return ".txt"
	default:
		return ".bin"
	}
}
