package op

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache, useful for tests and the example
// host. Production deployments back Cache with an external store; see
// spec.md §3 ("Distributed Cache").
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memEntry
	clock Clock
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache returns an empty MemoryCache using clock to evaluate
// expirations.
func NewMemoryCache(clock Clock) *MemoryCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryCache{items: make(map[string]memEntry), clock: clock}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.UtcNow().Before(entry.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	c.items[key] = memEntry{value: stored, expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}
