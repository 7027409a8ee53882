package di

import "github.com/google/wire"

// InfraSet opens the external clients. Disabled backends are provided as nil.
var InfraSet = wire.NewSet(
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideCache,
)

// PipelineSet builds the sampling and forecasting side.
var PipelineSet = wire.NewSet(
	ProvideForecastStore,
	ProvideForecastEngine,
	ProvideFetchClient,
	ProvideSampleArchive,
	ProvideSinkPipelines,
	ProvideStreamHub,
	ProvideSessions,
)

// APISet builds the HTTP surface and the app around it.
var APISet = wire.NewSet(
	ProvideControlLimiter,
	ProvideChartsHandler,
	ProvideApp,
)
