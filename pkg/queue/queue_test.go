package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCollectGathersAllKeys(t *testing.T) {
	p := NewPool(Config{Workers: 2, QueueSize: 4})
	t.Cleanup(p.Stop)

	keys := []int{1, 2, 3, 4, 5, 6, 7, 8}
	got := Collect(context.Background(), p, keys, func(_ context.Context, k int) (int, error) {
		return k * 2, nil
	})
	if len(got) != len(keys) {
		t.Fatalf("expected %d results, got %d", len(keys), len(got))
	}
	for _, k := range keys {
		r, ok := got[k]
		if !ok {
			t.Fatalf("missing result for %d", k)
		}
		if r.Err != nil || r.Value != k*2 {
			t.Fatalf("unexpected result for %d: %+v", k, r)
		}
	}
}

func TestCollectIsolatesErrors(t *testing.T) {
	p := NewPool(Config{Workers: 2, QueueSize: 4})
	t.Cleanup(p.Stop)

	boom := errors.New("boom")
	got := Collect(context.Background(), p, []string{"a", "bad", "c"}, func(_ context.Context, k string) (string, error) {
		if k == "bad" {
			return "", fmt.Errorf("load %s: %w", k, boom)
		}
		return k, nil
	})
	if got["a"].Err != nil || got["c"].Err != nil {
		t.Fatalf("expected clean keys unaffected: %+v", got)
	}
	if !errors.Is(got["bad"].Err, boom) {
		t.Fatalf("expected wrapped error for bad key, got %v", got["bad"].Err)
	}
}

func TestCollectRunsInlineWhenStopped(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1})
	p.Stop()

	got := Collect(context.Background(), p, []int{1, 2, 3}, func(_ context.Context, k int) (int, error) {
		return k, nil
	})
	if len(got) != 3 {
		t.Fatalf("expected every key handled after stop, got %d", len(got))
	}
	for k, r := range got {
		if r.Err != nil || r.Value != k {
			t.Fatalf("unexpected result for %d: %+v", k, r)
		}
	}
}

func TestCollectCanceledContext(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1})
	t.Cleanup(p.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Collect(ctx, p, []int{1, 2}, func(_ context.Context, k int) (int, error) {
		return k, nil
	})
	for k, r := range got {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("expected canceled error for %d, got %v", k, r.Err)
		}
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1})
	p.Stop()
	if ok := p.Submit(context.Background(), func() {}); ok {
		t.Fatalf("expected submit rejected after stop")
	}
}
