//go:build wireinject
// +build wireinject

package di

import (
	"StockSim/pkg/config"
	"StockSim/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCHStore,
	ProvideCache,
	ProvideYahoo,
	ProvidePriceSource,
	ProvideCatalog,
	ProvideHistory,
	ProvideKafkaProducer,
	ProvideEventPublisher,
)

var usecaseSet = wire.NewSet(
	ProvideSimulator,
	ProvideSimulationUsecase,
	ProvideSeedUsecase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		usecaseSet,

		// Transports
		ProvideJobQueue,
		ProvideLimiter,
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideSimulationJobHandler,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeCLI wires the usecases used by the one-shot commands.
func InitializeCLI(cfg *config.Config) (*CLI, error) {
	wire.Build(
		infraSet,
		usecaseSet,
		ProvideCLI,
	)
	return &CLI{}, nil
}
