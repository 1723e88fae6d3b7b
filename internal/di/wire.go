//go:build wireinject
// +build wireinject

package di

import (
	"RiskCast/pkg/config"
	"RiskCast/pkg/server"

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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCache,
		ProvideJobQueue,
		ProvideAlphaVantage,

		// Repositories
		ProvideBarSource,
		ProvideArtifactStore,
		ProvideRegistry,
		ProvideMetricsStore,
		ProvideEventPublisher,

		// Use cases
		ProvideBundleLoader,
		ProvidePredictionService,
		ProvideTrainingService,
		ProvideTrainJob,
		ProvideModelEventsHandler,

		// Delivery
		ProvideRiskHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
