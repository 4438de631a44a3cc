package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"PanelPull/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Backend struct {
		Type string `yaml:"type"` // csv or clickhouse
	} `yaml:"backend"`
	Data struct {
		Dir            string `yaml:"dir"`
		Pattern        string `yaml:"pattern"`
		Interval       string `yaml:"interval"`
		LookbackMonths int    `yaml:"lookback_months"`
		MinBars        int    `yaml:"min_bars"`
	} `yaml:"data"`
	Pipeline struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
		CovWindow int `yaml:"cov_window"`
	} `yaml:"pipeline"`
	Batch struct {
		Symbols []string `yaml:"symbols"` // empty means discover by data.pattern
		Start   string   `yaml:"start"`
		End     string   `yaml:"end"`
	} `yaml:"batch"`
	Cache struct {
		Dir     string        `yaml:"dir"`
		TTL     time.Duration `yaml:"ttl"` // zero means keep forever
		MaxSize int           `yaml:"max_size"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	API struct {
		RateLimitCapacity float64       `yaml:"rate_limit_capacity"`
		RateLimitRefill   float64       `yaml:"rate_limit_refill"`
		ResponseCacheTTL  time.Duration `yaml:"response_cache_ttl"`
	} `yaml:"api"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Events struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		LogTopic     string   `yaml:"log_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"events"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Batch.Symbols = util.SplitTrim(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = util.SplitTrim(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Events.Topic = v
	}
	c.Pipeline.Workers = util.ParseIntDefault(os.Getenv("WORKERS"), c.Pipeline.Workers)

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "csv"
	}
	if c.Data.Pattern == "" {
		c.Data.Pattern = "*usd"
	}
	if c.Data.Interval == "" {
		c.Data.Interval = "1h"
	}
	if c.Data.LookbackMonths == 0 {
		c.Data.LookbackMonths = 6
	}
	if c.Data.MinBars == 0 {
		c.Data.MinBars = 30
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 8
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 64
	}
	if c.Pipeline.CovWindow == 0 {
		c.Pipeline.CovWindow = 180
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 256
	}
	if c.API.RateLimitCapacity == 0 {
		c.API.RateLimitCapacity = 5
	}
	if c.API.RateLimitRefill == 0 {
		c.API.RateLimitRefill = 2
	}
	if c.API.ResponseCacheTTL == 0 {
		c.API.ResponseCacheTTL = 30 * time.Second
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "bars"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "csv" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'csv' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "csv" && c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required for the csv backend")
	}
	if c.Backend.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse backend")
	}
	if c.Data.LookbackMonths < 0 {
		return fmt.Errorf("data.lookback_months cannot be negative")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.CovWindow < 2 {
		return fmt.Errorf("pipeline.cov_window must be at least 2")
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers cannot be empty when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}
	return nil
}
