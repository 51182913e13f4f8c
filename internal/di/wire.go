//go:build wireinject
// +build wireinject

package di

import (
	"KlineScope/internal/domain/repository"
	"KlineScope/internal/service/binance"
	"KlineScope/internal/usecase"
	"KlineScope/pkg/config"
	"KlineScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Market data
		ProvideHTTPClient,
		ProvideBinanceClient,
		ProvideCache,
		ProvideMarketData,
		ProvideStreamer,
		wire.Bind(new(repository.KlineStream), new(*binance.Streamer)),

		// Backends
		ProvideClickHouseClient,
		ProvideCandleStorage,
		ProvideKafkaProducer,
		ProvideCandlePublisher,

		// Use cases
		ProvideCandleProcessor,
		ProvideCandlePipeline,
		ProvideCandleCollector,
		ProvideCalculator,
		ProvideAggregator,
		usecase.NewAnalysisUseCase,
		usecase.NewCandlesUseCase,
		ProvideScheduler,

		// Application server
		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
