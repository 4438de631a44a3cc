//go:build wireinject
// +build wireinject

package di

import (
	"PanelPull/pkg/config"
	"PanelPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvidePanelCache,

		// Repositories
		ProvideBarSource,
		ProvideEventPublisher,
		ProvideFeatureDeriver,

		// Use cases
		ProvideWorkerPool,
		ProvideSymbolLoader,
		ProvidePanelService,

		// HTTP layer
		ProvideResponseCache,
		ProvideRateLimiter,
		ProvidePanelsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
