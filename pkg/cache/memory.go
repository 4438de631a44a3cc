package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	value    interface{}
	expireAt time.Time // zero means no expiry
	lastUsed time.Time
}

func (it *memoryItem) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && now.After(it.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction.
// It is the fast tier in front of the durable cache, so everything here
// is rebuildable and losing it on restart costs only recomputation.
type MemoryCache struct {
	mutex   sync.RWMutex
	items   map[string]*memoryItem
	locks   map[string]time.Time // lock key -> expiry
	maxSize int
	janitor *time.Ticker
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*memoryItem),
		locks:   make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
	}

	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	now := time.Now()

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, ok := mc.items[key]; !ok && len(mc.items) >= mc.maxSize {
		mc.evictOldest()
	}

	it := &memoryItem{value: value, lastUsed: now}
	if expiration > 0 {
		it.expireAt = now.Add(expiration)
	}
	mc.items[key] = it
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	it, ok := mc.items[key]
	if !ok {
		return ErrCacheMiss
	}
	if it.expired(now) {
		delete(mc.items, key)
		return ErrCacheMiss
	}

	it.lastUsed = now
	return assignValue(it.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.items, key)
	}
	return nil
}

func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for key := range mc.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(mc.items, key)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()

	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	for _, key := range keys {
		if it, ok := mc.items[key]; ok && !it.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// TryLock acquires a build lock tracked apart from the data map, so storing
// the value itself never collides with its lock.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if exp, ok := mc.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	mc.locks[key] = now.Add(ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	delete(mc.locks, key)
	return nil
}

// evictOldest drops the least recently used entry. Caller holds the lock.
func (mc *MemoryCache) evictOldest() {
	var (
		oldestKey  string
		oldestUsed time.Time
	)
	for key, it := range mc.items {
		if oldestKey == "" || it.lastUsed.Before(oldestUsed) {
			oldestKey = key
			oldestUsed = it.lastUsed
		}
	}
	if oldestKey != "" {
		delete(mc.items, oldestKey)
	}
}

// sweep periodically removes expired entries and stale build locks.
func (mc *MemoryCache) sweep() {
	for range mc.janitor.C {
		now := time.Now()

		mc.mutex.Lock()
		for key, it := range mc.items {
			if it.expired(now) {
				delete(mc.items, key)
			}
		}
		for key, exp := range mc.locks {
			if now.After(exp) {
				delete(mc.locks, key)
			}
		}
		mc.mutex.Unlock()
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	if mc.janitor != nil {
		mc.janitor.Stop()
	}
	return nil
}
