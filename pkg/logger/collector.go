package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"time"
)

// Publisher ships aggregated log batches to an external sink.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes log aggregation.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct sites buffered before an early flush
	FlushTimeout   time.Duration // per-flush publish timeout, 30s when unset
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated log site with its repeat count.
// Fields carries the first occurrence's fields.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector buffers warn and error records, collapses repeats of the same
// call site and message, and ships batches through the Publisher.
type Collector struct {
	cfg    *CollectionConfig
	mu     sync.Mutex
	buf    map[uint64]*AggregatedLogEntry
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newCollector(cfg *CollectionConfig) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		cfg:    cfg,
		buf:    make(map[uint64]*AggregatedLogEntry),
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.run(ctx)
	return c
}

func (c *Collector) record(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := siteKey(level, message, caller)

	c.mu.Lock()
	if e, ok := c.buf[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.buf[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	full := len(c.buf) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if full {
		c.flush()
	}
}

// siteKey groups repeats of one message from one call site, so a warning
// emitted once per symbol collapses into a single counted entry.
func siteKey(level, message, caller string) uint64 {
	h := fnv.New64a()
	_, _ = io.WriteString(h, level+"\x00"+caller+"\x00"+message)
	return h.Sum64()
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		}
	}
}

// flush drains the buffer and publishes it in the background. Close waits
// for in-flight publishes.
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buf) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.buf))
	for _, e := range c.buf {
		batch = append(batch, *e)
	}
	c.buf = make(map[uint64]*AggregatedLogEntry)
	c.mu.Unlock()

	if c.cfg.Publisher == nil {
		return
	}
	timeout := c.cfg.FlushTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Printf("log collector publish failed: %v\n", err)
		}
	}()
}

// Close stops the flush loop, publishes whatever is buffered, and waits
// for in-flight publishes to finish.
func (c *Collector) Close() {
	c.cancel()
	c.wg.Wait()
}
