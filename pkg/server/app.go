package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PanelPull/internal/domain/repository"
	"PanelPull/internal/usecase"
	pkgcache "PanelPull/pkg/cache"
	pkgch "PanelPull/pkg/clickhouse"
	"PanelPull/pkg/config"
	xhttp "PanelPull/pkg/http"
	pkgkafka "PanelPull/pkg/kafka"
	applogger "PanelPull/pkg/logger"
	xutil "PanelPull/pkg/util"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	panels     *usecase.PanelService
	handler    xhttp.Handler
	httpServer *xhttp.Server
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	panelCache pkgcache.Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	panels *usecase.PanelService,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	panelCache pkgcache.Service,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		panels:     panels,
		handler:    handler,
		chClient:   chClient,
		producer:   producer,
		panelCache: panelCache,
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRequestLogger(a.l, 0),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("backend", a.cfg.Backend.Type),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

// RunOnce builds the configured panels one time and exits. The batch range
// comes from config; an empty symbol list falls back to glob discovery.
func (a *App) RunOnce(ctx context.Context) error {
	defer a.closeResources()

	if a.cfg.Batch.Start == "" {
		return fmt.Errorf("batch.start is required for a one-shot build")
	}
	start, ok := xutil.ParseTime(a.cfg.Batch.Start)
	if !ok {
		return fmt.Errorf("batch.start: cannot parse %q", a.cfg.Batch.Start)
	}
	end := time.Now().UTC()
	if a.cfg.Batch.End != "" {
		if end, ok = xutil.ParseTime(a.cfg.Batch.End); !ok {
			return fmt.Errorf("batch.end: cannot parse %q", a.cfg.Batch.End)
		}
	}

	symbols := a.cfg.Batch.Symbols
	if len(symbols) == 0 {
		var err error
		if symbols, err = a.panels.Symbols(ctx, ""); err != nil {
			return fmt.Errorf("discover symbols: %w", err)
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to build")
	}

	params := usecase.PanelParams{
		Symbols:  symbols,
		Start:    start,
		End:      end,
		Interval: domrepo.NormalizeInterval(a.cfg.Data.Interval),
	}

	a.l.Info("batch build starting",
		applogger.Strings("symbols", symbols),
		applogger.String("interval", string(params.Interval)),
	)
	a.panels.SetProgress(true)

	market, err := a.panels.LoadMarketData(ctx, params)
	if err != nil {
		return fmt.Errorf("market view: %w", err)
	}
	feats, err := a.panels.LoadFeatures(ctx, params)
	if err != nil {
		return fmt.Errorf("feature view: %w", err)
	}
	rets, err := a.panels.LoadReturns(ctx, params)
	if err != nil {
		return fmt.Errorf("returns view: %w", err)
	}
	cov, err := a.panels.LoadCovariance(ctx, params, a.cfg.Pipeline.CovWindow)
	if err != nil {
		return fmt.Errorf("covariance view: %w", err)
	}

	a.l.Info("batch build complete",
		applogger.Int("market_rows", len(market.Rows)),
		applogger.Int("feature_rows", len(feats.Rows)),
		applogger.Int("return_rows", len(rets.Times)),
		applogger.Int("covariance_matrices", len(cov.Matrices)),
	)
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	a.closeResources()
	a.l.Info("shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.panelCache != nil {
		if err := a.panelCache.Close(); err != nil {
			a.l.Warn("panel cache close error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	// Flushes any buffered log aggregation before exit.
	a.l.RemoveCollector()
}
