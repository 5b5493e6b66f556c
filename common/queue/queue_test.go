package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/logger"
)

func TestMemoryQueuePublishSubscribe(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[string]string{}
	done := make(chan struct{}, 2)

	require.NoError(t, q.Subscribe(ctx, "land.notifications", func(_ context.Context, key string, value []byte) error {
		mu.Lock()
		got[key] = string(value)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "land.notifications", "a", []byte("one")))
	require.NoError(t, q.Publish(ctx, "land.notifications", "b", []byte("two")))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"a": "one", "b": "two"}, got)
}

func TestMemoryQueueHandlerErrorDoesNotStopDelivery(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 2)
	require.NoError(t, q.Subscribe(ctx, "t", func(_ context.Context, key string, _ []byte) error {
		seen <- key
		return errors.New("boom")
	}))

	require.NoError(t, q.Publish(ctx, "t", "first", nil))
	require.NoError(t, q.Publish(ctx, "t", "second", nil))

	for _, want := range []string{"first", "second"} {
		select {
		case k := <-seen:
			assert.Equal(t, want, k)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < memoryTopicBuffer; i++ {
		require.NoError(t, q.Publish(ctx, "t", "k", nil))
	}
	err := q.Publish(ctx, "t", "k", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	ctx := context.Background()
	assert.ErrorIs(t, q.Publish(ctx, "t", "k", nil), ErrClosed)
	assert.ErrorIs(t, q.Subscribe(ctx, "t", func(context.Context, string, []byte) error { return nil }), ErrClosed)
}
