// Package draw conducts reproducible allotment lotteries.
//
// A draw generates an unpredictable seed, then shuffles the applicant pool
// with a deterministic PRNG keyed by that seed. Anyone holding the seed and
// the pool can replay the exact order. Every result and the draw as a whole
// carry a SHA-256 audit hash over RFC 8785 canonical JSON.
package draw

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// SeedBytes is the length of a generated seed before hex encoding
const SeedBytes = 32

// Engine conducts draws
type Engine struct {
	entropy io.Reader
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option configures an Engine
type Option func(*Engine)

// WithEntropy replaces crypto/rand as the seed source
func WithEntropy(r io.Reader) Option {
	return func(e *Engine) { e.entropy = r }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces uuid.New as the draw id source
func WithIDs(newID func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a draw engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{entropy: rand.Reader, now: time.Now, newID: uuid.New}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Conduct shuffles pool and selects the first selectedCount applications
func (e *Engine) Conduct(schemeID string, pool []string, selectedCount int) (*models.DrawAudit, error) {
	if err := validatePool(pool, selectedCount); err != nil {
		return nil, err
	}

	raw := make([]byte, SeedBytes)
	if _, err := io.ReadFull(e.entropy, raw); err != nil {
		return nil, fmt.Errorf("failed to generate draw seed: %w", err)
	}
	seed := hex.EncodeToString(raw)

	order := Shuffle(seed, pool)
	results := make([]models.DrawResult, len(order))
	for i, appID := range order {
		r := models.DrawResult{ApplicationID: appID}
		if i < selectedCount {
			r.Selected = true
			r.DrawSequence = i + 1
		}
		h, err := ResultHash(r, seed)
		if err != nil {
			return nil, err
		}
		r.AuditHash = h
		results[i] = r
	}

	audit := &models.DrawAudit{
		DrawID:        e.newID(),
		SchemeID:      schemeID,
		RandomSeed:    seed,
		SelectedCount: selectedCount,
		PoolSize:      len(pool),
		Results:       results,
		ConductedAt:   e.now().UTC(),
	}
	agg, err := AggregateHash(audit)
	if err != nil {
		return nil, err
	}
	audit.AuditHash = agg
	return audit, nil
}

func validatePool(pool []string, selectedCount int) error {
	if selectedCount < 0 || selectedCount > len(pool) {
		return apperr.Newf(apperr.CodeInvalidSelectionSize,
			"cannot select %d from a pool of %d", selectedCount, len(pool)).
			WithDetail("selected_count", selectedCount).
			WithDetail("pool_size", len(pool))
	}
	seen := make(map[string]struct{}, len(pool))
	for _, id := range pool {
		if id == "" {
			return apperr.New(apperr.CodeInvalidArgument, "pool contains an empty application id")
		}
		if _, dup := seen[id]; dup {
			return apperr.Newf(apperr.CodeInvalidArgument, "application %s appears twice in the pool", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// resultPayload is the hashed form of a result. Field names are part of the
// audit format.
type resultPayload struct {
	ApplicationID string `json:"applicationId"`
	DrawSequence  int    `json:"drawSequence"`
	Selected      bool   `json:"selected"`
	Seed          string `json:"seed"`
}

type aggregatePayload struct {
	DrawID       string `json:"drawId"`
	SchemeID     string `json:"schemeId"`
	ResultHashes string `json:"resultHashes"`
	Seed         string `json:"seed"`
}

// ResultHash is the audit hash of a single result
func ResultHash(r models.DrawResult, seed string) (string, error) {
	return canonicalHash(resultPayload{
		ApplicationID: r.ApplicationID,
		DrawSequence:  r.DrawSequence,
		Selected:      r.Selected,
		Seed:          seed,
	})
}

// AggregateHash is the audit hash of a draw. It depends only on the draw id,
// scheme id, the sorted per-result hashes and the seed.
func AggregateHash(a *models.DrawAudit) (string, error) {
	hashes := make([]string, len(a.Results))
	for i, r := range a.Results {
		hashes[i] = r.AuditHash
	}
	sort.Strings(hashes)
	return canonicalHash(aggregatePayload{
		DrawID:       a.DrawID.String(),
		SchemeID:     a.SchemeID,
		ResultHashes: strings.Join(hashes, ","),
		Seed:         a.RandomSeed,
	})
}

func canonicalHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize audit payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
