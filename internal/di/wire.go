//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinSignal/pkg/config"
	"FinSignal/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideScheduler,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideJournal,
		ProvideCandleHistory,
		ProvideTickStore,
		ProvideTickPublisher,
		ProvideStateStore,
		ProvideLatestSignalStore,
		ProvideSignalPublisher,

		// Signal engine
		ProvideGroups,
		ProvideAgent,
		ProvideDispatcher,
		ProvideOrchestrator,

		// Tick ingestion
		ProvideTickProcessor,
		ProvideTickPipeline,
		ProvideTickCollector,
		ProvideKafkaHandlers,

		// HTTP
		ProvideSignalQuery,
		ProvideSignalHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
