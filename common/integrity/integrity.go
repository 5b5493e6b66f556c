// Package integrity seals rendered documents with a SHA-256 content hash and
// verifies stored artifacts against it.
//
// The hash is never printed inside the bytes it covers. The verification
// pointer (URL, QR payload) lives in a detached record that references the
// hash, so a document can always be re-verified from its bytes alone.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Seal returns the hex SHA-256 digest of data
func Seal(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SealReader hashes everything read from r
func SealReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reads path fresh from storage and reports whether its digest equals
// expected. A missing file is reported as false with no error.
func Verify(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	got, err := SealReader(f)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}

// ValidHash reports whether s looks like a hex SHA-256 digest
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
