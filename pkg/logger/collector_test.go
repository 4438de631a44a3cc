package logger

import (
	"context"
	"testing"
	"time"
)

type capturePublisher struct {
	batches chan []AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	if b, ok := payload.([]AggregatedLogEntry); ok {
		p.batches <- b
	}
	return nil
}

func TestCollectorCollapsesRepeats(t *testing.T) {
	pub := &capturePublisher{batches: make(chan []AggregatedLogEntry, 1)}
	c := newCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	c.record("warn", "insufficient bars", map[string]interface{}{"symbol": "btcusd"}, "usecase/symbol_loader.go:42")
	c.record("warn", "insufficient bars", map[string]interface{}{"symbol": "ethusd"}, "usecase/symbol_loader.go:42")
	c.record("error", "load failed", nil, "usecase/panel_service.go:10")
	c.Close()

	select {
	case batch := <-pub.batches:
		if len(batch) != 2 {
			t.Fatalf("expected 2 aggregated entries, got %d", len(batch))
		}
		for _, e := range batch {
			if e.Message == "insufficient bars" && e.Count != 2 {
				t.Fatalf("expected repeat count 2, got %d", e.Count)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no batch published")
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{batches: make(chan []AggregatedLogEntry, 1)}
	c := newCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.record("warn", "a", nil, "x.go:1")
	c.record("warn", "b", nil, "x.go:2")

	select {
	case batch := <-pub.batches:
		if len(batch) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(batch))
		}
	case <-time.After(time.Second):
		t.Fatal("threshold flush did not fire")
	}
}
