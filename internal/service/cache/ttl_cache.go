package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt int64
}

// TTLCache is an in-process ResponseCache with lazy expiry, for
// single-instance deployments that do not need cross-process sharing.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]memoryEntry)}
}

func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expiresAt > 0 && time.Now().UnixNano() > e.expiresAt {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: exp}
	c.mu.Unlock()
	return nil
}
