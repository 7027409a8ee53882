package di

import (
	"context"
	"fmt"
	"time"

	"SensorPull/internal/domain/repository"
	domsvc "SensorPull/internal/domain/service"
	"SensorPull/internal/handler/api"
	"SensorPull/internal/handler/ws"
	mid "SensorPull/internal/middleware"
	internalrepo "SensorPull/internal/repository"
	"SensorPull/internal/service/datasource"
	svcmetrics "SensorPull/internal/service/metrics"
	"SensorPull/internal/service/ratelimit"
	"SensorPull/internal/services/forecast"
	"SensorPull/internal/usecase"
	"SensorPull/pkg/cache"
	pkgch "SensorPull/pkg/clickhouse"
	"SensorPull/pkg/config"
	xhttp "SensorPull/pkg/http"
	pkgkafka "SensorPull/pkg/kafka"
	applogger "SensorPull/pkg/logger"
	"SensorPull/pkg/metrics"
	"SensorPull/pkg/server"
)

// ProvideClickHouseClient creates a ClickHouse client and the sample table. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// tables are addressed as database.table, so the pool connects to "default"
	// and works before the sample database exists
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithAuth("default", cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	schema := pkgch.SampleSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table, cfg.ClickHouse.Retention)
	if err := client.Migrate(ctx, schema...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyHashing(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. With a producer and the collector
// enabled, aggregated warnings and errors are published to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.FlushInterval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
			Source:         cfg.Environment,
			IncludeWarn:    cfg.Logging.Collector.IncludeWarn,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New(nil)
}

// ProvideCache creates the forecast state cache: memory only, or memory in front of Redis.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.MemorySize)), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc, cfg.Redis.MemorySize, cfg.Redis.L1TTL), nil
}

// ProvideForecastStore keeps the latest forecast per source in the cache.
func ProvideForecastStore(c cache.Service, cfg *config.Config) repository.ForecastStore {
	return internalrepo.NewCacheForecastStore(c, cfg.Forecast.StateTTL)
}

// ProvideForecastEngine creates the AR forecasting engine.
func ProvideForecastEngine(cfg *config.Config) domsvc.Forecaster {
	return forecast.NewEngine(forecast.Config{
		Window:     cfg.Forecast.Window,
		MinSamples: cfg.Forecast.MinSamples,
		Order:      cfg.Forecast.Order,
		Horizon:    cfg.Forecast.Horizon,
	})
}

// ProvideFetchClient creates the data source REST client.
func ProvideFetchClient(cfg *config.Config) repository.FetchClient {
	return datasource.New(xhttp.NewClient(
		xhttp.WithBaseURL(cfg.Fetch.BaseURL),
		xhttp.WithTimeout(cfg.Fetch.Timeout),
	))
}

// ProvideSampleArchive creates the ClickHouse archive. Nil when ClickHouse is disabled.
func ProvideSampleArchive(ch *pkgch.Client, cfg *config.Config) repository.SampleArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseSampleArchive(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
}

// ProvideSinkPipelines puts a retrying buffer in front of every enabled sink.
func ProvideSinkPipelines(
	cfg *config.Config,
	archive repository.SampleArchive,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	l *applogger.Logger,
) mid.Pipelines {
	var sinks []repository.BatchSink
	if archive != nil {
		sinks = append(sinks, archive)
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaBatchPublisher(producer, cfg.Kafka.Topic))
	}

	pipes := make(mid.Pipelines, 0, len(sinks))
	for _, s := range sinks {
		pipes = append(pipes, mid.NewSinkPipeline(s, m,
			mid.WithBufferSize(cfg.Sinks.BufferSize),
			mid.WithRetry(cfg.Sinks.RetryMax, cfg.Sinks.BackoffMin, cfg.Sinks.BackoffMax),
			mid.WithLogger(l.With(applogger.String("sink", s.Name()))),
		))
	}
	return pipes
}

// ProvideStreamHub creates the websocket hub.
func ProvideStreamHub(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *ws.Hub {
	return ws.NewHub(m, l,
		ws.WithPingInterval(cfg.Server.StreamPing),
		ws.WithAllowedOrigins(cfg.Server.AllowOrigins...),
	)
}

// ProvideSessions creates the chart session manager. Every bus gets the sink pipelines
// and the stream hub after its own sample buffer.
func ProvideSessions(
	cfg *config.Config,
	fetch repository.FetchClient,
	engine domsvc.Forecaster,
	store repository.ForecastStore,
	m repository.Metrics,
	l *applogger.Logger,
	pipes mid.Pipelines,
	hub *ws.Hub,
) *usecase.Sessions {
	subs := make([]usecase.NamedSubscriber, 0, len(pipes)+1)
	for _, p := range pipes {
		subs = append(subs, usecase.NamedSubscriber{Name: p.Name(), Subscriber: p})
	}
	subs = append(subs, usecase.NamedSubscriber{Name: "stream", Subscriber: hub})

	return usecase.NewSessions(fetch, engine, store, m, l,
		usecase.SessionConfig{
			FetchTimeout:     cfg.Fetch.Timeout,
			ForecastInterval: cfg.Forecast.Interval,
			ForecastWindow:   cfg.Forecast.Window,
		},
		subs,
		[]domsvc.ForecastListener{hub},
	)
}

// ProvideControlLimiter limits chart start/stop calls per client.
func ProvideControlLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.ControlRate.Burst, cfg.Server.ControlRate.PerSec)
}

// ProvideChartsHandler creates the chart API handler.
func ProvideChartsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	sessions *usecase.Sessions,
	store repository.ForecastStore,
	hub *ws.Hub,
	archive repository.SampleArchive,
	limiter *ratelimit.Limiter,
) *api.ChartsHandler {
	return api.NewChartsHandler(l, cfg.Charts, sessions, store, hub, archive, limiter)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	sessions *usecase.Sessions,
	handler *api.ChartsHandler,
	hub *ws.Hub,
	pipes mid.Pipelines,
	limiter *ratelimit.Limiter,
	archive repository.SampleArchive,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, sessions, handler, hub, pipes, limiter, archive, ch, producer, c)
}
