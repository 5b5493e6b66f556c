package sequence

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/landrecords/portal/common/apperr"
)

func TestNextStartsAtOnePerYear(t *testing.T) {
	ctx := context.Background()
	g := NewGenerator(NewMemoryCounter(), nil)

	v, err := g.Next(ctx, PrefixAward, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = g.Next(ctx, PrefixAward, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// year rollover uses a separate counter
	v, err = g.Next(ctx, PrefixAward, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNextConcurrentCallersGetDistinctValues(t *testing.T) {
	ctx := context.Background()
	counter := NewMemoryCounter()
	g := NewGenerator(counter, nil)

	// pre-existing values must be continued, not restarted
	for i := 0; i < 5; i++ {
		_, err := g.Next(ctx, PrefixSEC11, 2024)
		require.NoError(t, err)
	}
	k := counter.Current(PrefixSEC11, 2024)

	const n = 200
	values := make([]int64, n)
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			v, err := g.Next(ctx, PrefixSEC11, 2024)
			values[i] = v
			return err
		})
	}
	require.NoError(t, eg.Wait())

	sort.Slice(values, func(a, b int) bool { return values[a] < values[b] })
	for i, v := range values {
		assert.Equal(t, k+int64(i)+1, v)
	}
}

func TestNextValidatesKey(t *testing.T) {
	g := NewGenerator(NewMemoryCounter(), nil)

	_, err := g.Next(context.Background(), "", 2024)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = g.Next(context.Background(), PrefixPoss, 0)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestNextPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	g := NewGenerator(CounterFunc(func(ctx context.Context, name string, year int) (int64, error) {
		calls++
		return 0, boom
	}), nil)

	_, err := g.Next(context.Background(), PrefixSIA, 2024)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "no retry")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "SEC11-2024-007", Format(PrefixSEC11, 2024, 7))
	assert.Equal(t, "AWARD-2025-120", Format(PrefixAward, 2025, 120))
	assert.Equal(t, "DRAW-2025-1234", Format(PrefixDraw, 2025, 1234))
}

func TestNextFormatted(t *testing.T) {
	g := NewGenerator(NewMemoryCounter(), nil)
	ref, err := g.NextFormatted(context.Background(), PrefixPoss, 2024)
	require.NoError(t, err)
	assert.Equal(t, "POSS-2024-001", ref)
}

func TestMemoryCounterHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryCounter().Increment(ctx, PrefixSIA, 2024)
	assert.ErrorIs(t, err, context.Canceled)
}
