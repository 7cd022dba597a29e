package memory

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// IdempotencyCache implements ports.IdempotencyCache. Expired entries are
// dropped on read and swept on every Set.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, old := range c.entries {
		if !old.expiresAt.IsZero() && !now.Before(old.expiresAt) {
			delete(c.entries, k)
		}
	}

	e := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}
