package integrity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/apperr"
)

func TestSealKnownVector(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Seal(nil))
	assert.True(t, ValidHash(Seal([]byte("award order"))))
	assert.False(t, ValidHash("abc"))
	assert.False(t, ValidHash("zz"+Seal(nil)[2:]))
}

func TestVerifyMissingFileIsFalse(t *testing.T) {
	ok, err := Verify(filepath.Join(t.TempDir(), "nope.pdf"), Seal(nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

// verify(pathOf(B), seal(B)) holds for any B, and flipping one stored byte breaks it
func TestSealVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sealer := NewSealer(dir, "https://portal.example", nil)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("stored bytes verify and a one-byte change does not", prop.ForAll(
		func(data []byte, pos int) bool {
			if len(data) == 0 {
				data = []byte{0}
			}
			sealed, err := sealer.SealAndStore(context.Background(), "receipt", "application/pdf", data)
			if err != nil {
				return false
			}
			ok, err := Verify(sealed.FilePath, Seal(data))
			if err != nil || !ok {
				return false
			}

			tampered := filepath.Join(dir, "tampered.bin")
			mutated := append([]byte(nil), data...)
			mutated[pos%len(mutated)] ^= 0xFF
			if err := os.WriteFile(tampered, mutated, 0o644); err != nil {
				return false
			}
			ok, err = Verify(tampered, sealed.Hash)
			return err == nil && !ok
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1<<16),
	))

	properties.TestingRun(t)
}

func TestTamperedArtifactFailsVerification(t *testing.T) {
	sealer := NewSealer(t.TempDir(), "https://portal.example/", nil)
	data := []byte("possession certificate for survey no. 12/4")

	sealed, err := sealer.SealAndStore(context.Background(), "possession_certificate", "application/pdf", data)
	require.NoError(t, err)

	ok, err := sealer.Verify(sealed.FilePath, sealed.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.Chmod(sealed.FilePath, 0o644))
	data[0] ^= 0x01
	require.NoError(t, os.WriteFile(sealed.FilePath, data, 0o644))

	ok, err = sealer.Verify(sealed.FilePath, sealed.Hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSealAndStoreLayout(t *testing.T) {
	root := t.TempDir()
	sealer := NewSealer(root, "https://portal.example/", nil)
	data := []byte("notification body")

	sealed, err := sealer.SealAndStore(context.Background(), "notification", "application/pdf", data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "notification", Seal(data)+".pdf"), sealed.FilePath)
	assert.Equal(t, "https://portal.example/verify/notification/"+Seal(data), sealed.QRVerificationURL)
	assert.Equal(t, int64(len(data)), sealed.SizeBytes)

	// detached record never changes the hashed artifact
	record, err := ReadRecord(sealed.FilePath)
	require.NoError(t, err)
	assert.Equal(t, sealed, record)

	stored, err := os.ReadFile(sealed.FilePath)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestSealAndStoreIsIdempotent(t *testing.T) {
	sealer := NewSealer(t.TempDir(), "", nil)
	data := []byte("same bytes")

	first, err := sealer.SealAndStore(context.Background(), "award_order", "application/pdf", data)
	require.NoError(t, err)
	second, err := sealer.SealAndStore(context.Background(), "award_order", "application/pdf", data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSealAndStoreDetectsCorruptedExistingArtifact(t *testing.T) {
	sealer := NewSealer(t.TempDir(), "", nil)
	data := []byte("award")

	path := sealer.PathFor("award_order", Seal(data), "application/pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("something else"), 0o644))

	_, err := sealer.SealAndStore(context.Background(), "award_order", "application/pdf", data)
	assert.True(t, apperr.HasCode(err, apperr.CodeIntegrityMismatch))
}

func TestSealAndStoreRejectsBadDocumentType(t *testing.T) {
	sealer := NewSealer(t.TempDir(), "", nil)
	for _, docType := range []string{"", "../etc", "a/b"} {
		_, err := sealer.SealAndStore(context.Background(), docType, "application/pdf", []byte("x"))
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument), docType)
	}
}

func TestDetachedRecordIsCanonical(t *testing.T) {
	rec, err := DetachedRecord(&Sealed{Hash: "h", DocumentType: "notification", FilePath: "/p", SizeBytes: 3})
	require.NoError(t, err)
	assert.Equal(t,
		`{"documentType":"notification","filePath":"/p","hash":"h","mediaType":"","qrVerificationUrl":"","sizeBytes":3}`,
		string(rec))
}
