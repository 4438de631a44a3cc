package kafka

import "time"

// ProducerConfig holds writer settings assembled from options.
type ProducerConfig struct {
	Brokers      []string
	Acks         int
	Compression  string
	Retries      int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int64
	Linger       time.Duration
	Async        bool
	KeyPartition bool
}

// ProducerOption configures the producer.
type ProducerOption func(*ProducerConfig)

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Acks:         -1,
		Compression:  "gzip",
		Retries:      3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		Linger:       time.Second,
	}
}

// WithBrokers sets the bootstrap brokers.
func WithBrokers(brokers ...string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression selects the payload codec (gzip, snappy, lz4, zstd).
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithAcks sets required acknowledgements, -1 for all replicas.
func WithAcks(n int) ProducerOption {
	return func(c *ProducerConfig) { c.Acks = n }
}

// WithRetries sets the writer's max delivery attempts.
func WithRetries(n int) ProducerOption {
	return func(c *ProducerConfig) { c.Retries = n }
}

// WithBatching tunes batch assembly: max messages, max bytes, and linger.
func WithBatching(size int, bytes int64, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchSize = size
		c.BatchBytes = bytes
		c.Linger = linger
	}
}

// WithTimeouts sets write and read timeouts.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithKeyPartitioning routes equal keys to one partition, preserving
// per-key ordering.
func WithKeyPartitioning() ProducerOption {
	return func(c *ProducerConfig) { c.KeyPartition = true }
}
