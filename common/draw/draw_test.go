package draw

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

func pool(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("APP-%03d", i+1)
	}
	return out
}

func fixedEngine(seedByte byte) *Engine {
	return NewEngine(
		WithEntropy(bytes.NewReader(bytes.Repeat([]byte{seedByte}, SeedBytes))),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }),
		WithIDs(func() uuid.UUID { return uuid.MustParse("7f0c4a52-4d1e-4a8a-9b7e-2f4d8d0c1a11") }),
	)
}

func TestConductSelectsExactlyK(t *testing.T) {
	audit, err := NewEngine().Conduct("scheme-1", pool(10), 3)
	require.NoError(t, err)

	assert.Len(t, audit.Results, 10)
	assert.Len(t, audit.RandomSeed, SeedBytes*2)

	var seqs []int
	unselected := 0
	for _, r := range audit.Results {
		if r.Selected {
			seqs = append(seqs, r.DrawSequence)
		} else {
			unselected++
			assert.Equal(t, 0, r.DrawSequence)
		}
	}
	sort.Ints(seqs)
	assert.Equal(t, []int{1, 2, 3}, seqs)
	assert.Equal(t, 7, unselected)
	assert.True(t, Verify(audit))
}

func TestConductIsReproducibleFromSeed(t *testing.T) {
	a1, err := fixedEngine(0x42).Conduct("scheme-1", pool(25), 5)
	require.NoError(t, err)
	a2, err := fixedEngine(0x42).Conduct("scheme-1", pool(25), 5)
	require.NoError(t, err)

	assert.Equal(t, a1.Results, a2.Results)
	assert.Equal(t, a1.AuditHash, a2.AuditHash)
	require.NoError(t, Replay(a1, pool(25)))

	a3, err := fixedEngine(0x43).Conduct("scheme-1", pool(25), 5)
	require.NoError(t, err)
	assert.NotEqual(t, a1.AuditHash, a3.AuditHash)
}

func TestTamperingIsDetected(t *testing.T) {
	fresh := func() *models.DrawAudit {
		a, err := fixedEngine(0x07).Conduct("scheme-9", pool(10), 3)
		require.NoError(t, err)
		return a
	}

	t.Run("selected flag flipped", func(t *testing.T) {
		a := fresh()
		for i, r := range a.Results {
			if !r.Selected {
				a.Results[i].Selected = true
				break
			}
		}
		assert.ErrorIs(t, Check(a), ErrResultHash)

		// recomputing the result hash externally still breaks the aggregate
		for i, r := range a.Results {
			h, err := ResultHash(r, a.RandomSeed)
			require.NoError(t, err)
			a.Results[i].AuditHash = h
		}
		assert.ErrorIs(t, Check(a), ErrAggregateHash)
	})

	t.Run("seed replaced", func(t *testing.T) {
		a := fresh()
		a.RandomSeed = "00" + a.RandomSeed[2:]
		assert.False(t, Verify(a))
	})

	t.Run("scheme replaced", func(t *testing.T) {
		a := fresh()
		a.SchemeID = "scheme-10"
		assert.ErrorIs(t, Check(a), ErrAggregateHash)
	})

	t.Run("fully rehashed duplicate sequence", func(t *testing.T) {
		a := fresh()
		for i, r := range a.Results {
			if r.DrawSequence == 2 {
				a.Results[i].DrawSequence = 1
			}
		}
		for i, r := range a.Results {
			h, _ := ResultHash(r, a.RandomSeed)
			a.Results[i].AuditHash = h
		}
		a.AuditHash, _ = AggregateHash(a)
		assert.ErrorIs(t, Check(a), ErrSequence)
	})

	t.Run("replay with reordered pool", func(t *testing.T) {
		a := fresh()
		p := pool(10)
		p[0], p[1] = p[1], p[0]
		assert.ErrorIs(t, Replay(a, p), ErrReplay)
	})
}

func TestConductValidatesSelection(t *testing.T) {
	e := NewEngine()

	_, err := e.Conduct("s", pool(3), 4)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSelectionSize))

	_, err = e.Conduct("s", pool(3), -1)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSelectionSize))

	_, err = e.Conduct("s", []string{"A", "B", "A"}, 1)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	audit, err := e.Conduct("s", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, audit.Results)
	assert.True(t, Verify(audit))
}

func TestConductPropagatesEntropyFailure(t *testing.T) {
	e := NewEngine(WithEntropy(bytes.NewReader([]byte{1, 2, 3})))
	_, err := e.Conduct("s", pool(3), 1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSequence))
}

func TestShuffleIsAPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("shuffle is deterministic and preserves elements", prop.ForAll(
		func(seed string, n int) bool {
			p := pool(n)
			s1 := Shuffle(seed, p)
			s2 := Shuffle(seed, p)
			if fmt.Sprint(s1) != fmt.Sprint(s2) {
				return false
			}
			sorted := append([]string(nil), s1...)
			sort.Strings(sorted)
			return fmt.Sprint(sorted) == fmt.Sprint(p)
		},
		gen.AnyString(),
		gen.IntRange(0, 64),
	))

	properties.Property("any conducted draw verifies", prop.ForAll(
		func(n, k int) bool {
			if k > n {
				k = n
			}
			a, err := NewEngine().Conduct("scheme", pool(n), k)
			return err == nil && Verify(a) && Replay(a, pool(n)) == nil
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	p := pool(8)
	before := append([]string(nil), p...)
	_ = Shuffle("seed", p)
	assert.Equal(t, before, p)
}
