//go:build wireinject
// +build wireinject

package di

import (
	"MarketMonitor/pkg/config"
	"MarketMonitor/pkg/server"

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
		ProvideRedisClient,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideToolClient,

		// Repositories
		ProvideMarketDataSource,
		ProvideSnapshotStorage,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideMarketDataUseCase,
		ProvidePnlUseCase,
		ProvideSnapshotRecorder,
		ProvideSnapshotPipeline,
		ProvideAnalyticsUseCase,
		ProvideHistoryUseCase,
		ProvideSnapshotSink,

		// Live refresh
		ProvideStreamHub,
		ProvideRefreshJob,
		ProvideQueue,
		ProvidePoller,

		// HTTP
		ProvideLatencyTracker,
		ProvideRateLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
