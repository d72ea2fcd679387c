//go:build wireinject
// +build wireinject

package di

import (
	"CandleKeep/pkg/config"
	"CandleKeep/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideHTTPClient,
		ProvideRateLimiter,

		// Repositories
		ProvideHotStore,
		ProvideColdStore,
		ProvideLiveCache,
		ProvidePublisher,

		// Exchange adapters
		ProvideExchange,
		ProvideStream,

		// Reconciliation stages
		ProvideAnomalyCleaner,
		ProvideBridge,
		ProvideLiveAppender,
		ProvideValidator,

		// Use cases
		ProvideHistoryUseCase,
		ProvideAggregator,
		ProvideKafkaTicksHandler,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideArchiver,

		// HTTP
		ProvideHistoryHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
