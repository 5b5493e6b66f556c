package draw

import (
	"crypto/sha256"
	"math/rand/v2"
)

// Shuffle returns a Fisher-Yates permutation of pool driven by a ChaCha8
// stream keyed with SHA-256(seed). The same seed and pool always produce the
// same order. pool is not modified.
func Shuffle(seed string, pool []string) []string {
	out := make([]string, len(pool))
	copy(out, pool)

	rng := rand.New(rand.NewChaCha8(sha256.Sum256([]byte(seed))))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
