//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketBrain/pkg/config"
	"MarketBrain/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Storage and transport
		ProvideDB,
		ProvideJournal,
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCandleArchive,
		ProvideEventPublisher,
		ProvideLedgerStore,
		ProvideDurableCache,
		ProvideMemoryCache,

		// Upstream services
		ProvidePriceSource,
		ProvideNews,
		ProvideTechnicals,
		ProvideGemini,
		ProvideAnalysisBase,
		ProvideSignalGenerator,
		ProvidePatternDetector,
		ProvideNotifier,

		// Use cases
		ProvideErrorBudget,
		ProvideLedger,
		ProvideMovers,
		ProvideForecaster,
		ProvideBrain,
		ProvideScanner,
		ProvideAgent,
		ProvideSupervisor,
		ProvideObservationPipeline,
		ProvideObservationFeed,
		ProvideKafkaConsumer,

		// Application server
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
