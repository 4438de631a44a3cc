package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record destined for a topic.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer publishes JSON-encoded records through a shared kafka-go writer.
type Producer struct {
	writer *kafka.Writer
}

var compressionCodecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}

	codec, ok := compressionCodecs[cfg.Compression]
	if !ok {
		codec = kafka.Gzip
	}
	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.KeyPartition {
		balancer = &kafka.Hash{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(cfg.Acks),
		Compression:  codec,
		MaxAttempts:  cfg.Retries,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   cfg.BatchBytes,
		BatchTimeout: cfg.Linger,
		Async:        cfg.Async,
	}

	return &Producer{writer: w}, nil
}

// Publish sends one record.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends records in one writer call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	records := make([]kafka.Message, len(messages))
	var payloadBytes int64
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("kafka: encode message %d: %w", i, err)
		}
		records[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now}
		payloadBytes += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, records...)
	publishStats().observe(topic, len(records), payloadBytes, time.Since(now), err)
	return err
}

// Close flushes and releases the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// encodeValue passes raw bytes and strings through and JSON-encodes the rest.
func encodeValue(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return json.Marshal(val)
	}
}

type producerStats struct {
	published *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	statsOnce   sync.Once
	sharedStats *producerStats
)

func publishStats() *producerStats {
	statsOnce.Do(func() {
		sharedStats = &producerStats{
			published: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "panelpull_kafka_messages_total",
				Help: "Messages handed to the Kafka writer, by outcome.",
			}, []string{"topic", "result"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "panelpull_kafka_payload_bytes_total",
				Help: "Encoded payload bytes handed to the Kafka writer.",
			}, []string{"topic"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "panelpull_kafka_publish_seconds",
				Help:    "Latency of writer calls.",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
	return sharedStats
}

func (s *producerStats) observe(topic string, count int, bytes int64, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.published.WithLabelValues(topic, result).Add(float64(count))
	s.bytes.WithLabelValues(topic).Add(float64(bytes))
	s.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
