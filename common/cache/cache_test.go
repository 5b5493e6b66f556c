package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/logger"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(logger.Discard(), time.Hour)
	defer c.Close()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "role:legal-1", []byte("legal_officer"), 30*time.Second))

	v, ok, err := c.Get(ctx, "role:legal-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "legal_officer", string(v))

	now = now.Add(31 * time.Second)
	_, ok, err = c.Get(ctx, "role:legal-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, c.Len())
	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheDeleteAndClose(t *testing.T) {
	c := NewMemoryCache(logger.Discard(), time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a"))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}
