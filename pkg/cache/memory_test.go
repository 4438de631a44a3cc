package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheLockIndependentOfData(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Set(ctx, "k", storedPanel{Symbol: "x"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, _ := c.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected lock acquired")
	}
	if ok, _ := c.TryLock(ctx, "k", time.Minute); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if err := c.Unlock(ctx, "k"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	var out storedPanel
	if err := c.Get(ctx, "k", &out); err != nil {
		t.Fatalf("entry must survive the lock cycle: %v", err)
	}
	if out.Symbol != "x" {
		t.Fatalf("unexpected value %+v", out)
	}
}

func TestMemoryCacheLockExpires(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if ok, _ := c.TryLock(ctx, "k", 5*time.Millisecond); !ok {
		t.Fatalf("expected first acquire")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := c.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected expired lock reacquired")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Set(ctx, "k", storedPanel{Symbol: "x"}, 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var out storedPanel
	if err := c.Get(ctx, "k", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Set(ctx, "a", 1, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := c.Set(ctx, "b", 2, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(time.Millisecond)

	// touch a so b becomes the least recently used
	var n int
	if err := c.Get(ctx, "a", &n); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := c.Set(ctx, "c", 3, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, _ := c.Exists(ctx, "b"); ok {
		t.Fatalf("expected b evicted")
	}
	if ok, _ := c.Exists(ctx, "a"); !ok {
		t.Fatalf("expected a kept")
	}
	if ok, _ := c.Exists(ctx, "c"); !ok {
		t.Fatalf("expected c kept")
	}
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	for _, key := range []string{"panel:btcusd", "panel:ethusd", "resp:market"} {
		if err := c.Set(ctx, key, 1, 0); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := c.DeleteByPattern(ctx, "panel:*"); err != nil {
		t.Fatalf("delete by pattern: %v", err)
	}

	if ok, _ := c.Exists(ctx, "panel:btcusd", "panel:ethusd"); ok {
		t.Fatalf("expected panel keys removed")
	}
	if ok, _ := c.Exists(ctx, "resp:market"); !ok {
		t.Fatalf("expected unrelated key kept")
	}
}

func TestLayeredCachePromotesFromDurableTier(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	disk := newDiskCache(t, dir)
	warm := NewMemoryCache()
	t.Cleanup(func() { _ = warm.Close() })
	if err := NewLayeredCache(warm, disk).Set(ctx, "k", storedPanel{Symbol: "x"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// fresh L1 over the same disk tier, as after a restart
	cold := NewMemoryCache()
	t.Cleanup(func() { _ = cold.Close() })
	layered := NewLayeredCache(cold, newDiskCache(t, dir))

	var out storedPanel
	if err := layered.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Symbol != "x" {
		t.Fatalf("unexpected value %+v", out)
	}

	var promoted storedPanel
	if err := cold.Get(ctx, "k", &promoted); err != nil {
		t.Fatalf("expected hit promoted into the fast tier: %v", err)
	}
}

func TestLayeredCacheLocksOnDurableTier(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	disk := newDiskCache(t, dir)
	mem := NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	layered := NewLayeredCache(mem, disk)

	if ok, _ := layered.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected lock acquired")
	}
	if ok, _ := disk.TryLock(ctx, "k", time.Minute); ok {
		t.Fatalf("expected the durable tier to hold the lock")
	}
	if err := layered.Unlock(ctx, "k"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}
