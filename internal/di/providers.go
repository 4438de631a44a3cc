package di

import (
	"context"
	"fmt"
	"time"

	domrepo "PanelPull/internal/domain/repository"
	"PanelPull/internal/handler/api"
	internalrepo "PanelPull/internal/repository"
	icache "PanelPull/internal/service/cache"
	"PanelPull/internal/service/ratelimit"
	"PanelPull/internal/services/features"
	"PanelPull/internal/usecase"
	pkgcache "PanelPull/pkg/cache"
	pkgch "PanelPull/pkg/clickhouse"
	"PanelPull/pkg/config"
	pkgkafka "PanelPull/pkg/kafka"
	applogger "PanelPull/pkg/logger"
	"PanelPull/pkg/metrics"
	"PanelPull/pkg/queue"
	"PanelPull/pkg/server"
)

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// bars schema. The csv backend needs no infrastructure client and gets nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when events are enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers...),
		pkgkafka.WithCompression(cfg.Events.Compression),
		pkgkafka.WithAcks(cfg.Events.RequiredAcks),
		pkgkafka.WithBatching(cfg.Events.Producer.BatchSize, int64(cfg.Events.Producer.BatchBytes), cfg.Events.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Events.Producer.WriteTimeout, cfg.Events.Producer.ReadTimeout),
		pkgkafka.WithRetries(cfg.Events.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Events.Producer.Async),
		pkgkafka.WithKeyPartitioning(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// kafkaLogPublisher fans aggregated log entries out to Kafka, one message
// per entry keyed by level so a partition carries a level's stream in order.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p *kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	entries, ok := payload.([]applogger.AggregatedLogEntry)
	if !ok {
		return p.producer.Publish(ctx, topic, nil, payload)
	}
	msgs := make([]pkgkafka.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(e.Level), Value: e})
	}
	return p.producer.PublishBatch(ctx, topic, msgs)
}

// ProvideLogger creates the application logger, attaching the Kafka log
// collector when a log topic is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if producer != nil && cfg.Events.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Events.LogTopic,
			Publisher:      &kafkaLogPublisher{producer: producer},
		})
	}

	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBarSource selects the bar backend: one csv file per symbol under
// data.dir, or the shared ClickHouse bars table.
func ProvideBarSource(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) (domrepo.BarSource, error) {
	switch cfg.Backend.Type {
	case "clickhouse":
		src := internalrepo.NewClickHouseBarSource(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
		src.SetLogger(l)
		return src, nil
	default:
		src := internalrepo.NewCSVBarSource(cfg.Data.Dir)
		src.SetLogger(l)
		return src, nil
	}
}

// ProvideEventPublisher creates the Kafka build-event publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil || cfg.Events.Topic == "" {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Events.Topic)
}

// ProvidePanelCache builds the layered panel cache: a bounded in-memory
// layer in front of a durable one, Redis when enabled and disk otherwise.
func ProvidePanelCache(cfg *config.Config) (pkgcache.Service, error) {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MaxSize))

	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix("panelpull"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return pkgcache.NewLayeredCache(mem, rc), nil
	}

	disk, err := pkgcache.NewDiskCache(pkgcache.WithDiskDir(cfg.Cache.Dir))
	if err != nil {
		return nil, fmt.Errorf("disk cache: %w", err)
	}
	return pkgcache.NewLayeredCache(mem, disk), nil
}

// ProvideFeatureDeriver creates the indicator deriver.
func ProvideFeatureDeriver() domrepo.FeatureDeriver {
	return features.NewDeriver()
}

// ProvideSymbolLoader creates the per-symbol load pipeline.
func ProvideSymbolLoader(
	source domrepo.BarSource,
	deriver domrepo.FeatureDeriver,
	cache pkgcache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SymbolLoader {
	return usecase.NewSymbolLoader(source, deriver, cache, m, l, cfg.Data.MinBars, cfg.Cache.TTL)
}

// ProvideWorkerPool creates the bounded fan-out pool.
func ProvideWorkerPool(cfg *config.Config) *queue.Pool {
	return queue.NewPool(queue.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	})
}

// ProvidePanelService creates the cross-symbol panel use case.
func ProvidePanelService(
	loader *usecase.SymbolLoader,
	source domrepo.BarSource,
	pool *queue.Pool,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.PanelService {
	return usecase.NewPanelService(usecase.PanelServiceParams{
		Loader:   loader,
		Source:   source,
		Pool:     pool,
		Events:   events,
		Metrics:  m,
		Logger:   l,
		Lookback: cfg.Data.LookbackMonths,
		Window:   cfg.Pipeline.CovWindow,
		Pattern:  cfg.Data.Pattern,
	})
}

// ProvideResponseCache picks the HTTP response cache backend.
func ProvideResponseCache(cfg *config.Config) icache.ResponseCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideRateLimiter creates the per-client token bucket limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvidePanelsHandler creates the panel API handler.
func ProvidePanelsHandler(
	l *applogger.Logger,
	svc *usecase.PanelService,
	rc icache.ResponseCache,
	rl *ratelimit.Limiter,
	cfg *config.Config,
) *api.PanelsHandler {
	return api.NewPanelsHandler(l, svc, rc, rl, api.PanelsHandlerConfig{
		ResponseTTL:       cfg.API.ResponseCacheTTL,
		RateLimitCapacity: cfg.API.RateLimitCapacity,
		RateLimitRefill:   cfg.API.RateLimitRefill,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	panels *usecase.PanelService,
	handler *api.PanelsHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	panelCache pkgcache.Service,
) *server.App {
	return server.New(cfg, l, panels, handler, chClient, producer, panelCache)
}
