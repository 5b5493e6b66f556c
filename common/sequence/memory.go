package sequence

import (
	"context"
	"sync"
)

type key struct {
	name string
	year int
}

// MemoryCounter is an in-process Counter for tests and single-node runs
type MemoryCounter struct {
	mu     sync.Mutex
	values map[key]int64
}

// NewMemoryCounter creates an empty counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[key]int64)}
}

func (c *MemoryCounter) Increment(ctx context.Context, name string, year int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{name, year}
	c.values[k]++
	return c.values[k], nil
}

// Current returns the last value issued for (name, year), zero if none
func (c *MemoryCounter) Current(name string, year int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key{name, year}]
}
