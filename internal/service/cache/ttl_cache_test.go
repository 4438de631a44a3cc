package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	if err := c.Set(ctx, "resp:market:a", []byte(`{"status":200}`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	b, ok, err := c.Get(ctx, "resp:market:a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit")
	}
	if !bytes.Equal(b, []byte(`{"status":200}`)) {
		t.Fatalf("unexpected payload: %s", b)
	}
}

func TestTTLCacheMiss(t *testing.T) {
	c := NewTTLCache()
	if _, ok, err := c.Get(context.Background(), "absent"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("x"), 5*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestTTLCacheZeroTTLKeeps(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	if err := c.Set(ctx, "pin", []byte("y"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "pin"); !ok {
		t.Fatalf("zero ttl should not expire")
	}
}
