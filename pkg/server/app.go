package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "SensorPull/internal/domain/repository"
	"SensorPull/internal/handler/api"
	"SensorPull/internal/handler/ws"
	mid "SensorPull/internal/middleware"
	"SensorPull/internal/service/ratelimit"
	"SensorPull/internal/usecase"
	"SensorPull/pkg/cache"
	pkgch "SensorPull/pkg/clickhouse"
	"SensorPull/pkg/config"
	xhttp "SensorPull/pkg/http"
	pkgkafka "SensorPull/pkg/kafka"
	applogger "SensorPull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	sessions  *usecase.Sessions
	handler   *api.ChartsHandler
	hub       *ws.Hub
	pipelines mid.Pipelines
	limiter   *ratelimit.Limiter
	archive   drepo.SampleArchive
	chClient  *pkgch.Client
	producer  *pkgkafka.Producer
	cache     cache.Service

	httpServer *xhttp.Server
	cancel     context.CancelFunc
}

// New creates a new App instance with all dependencies. archive, chClient and
// producer are nil when the matching integration is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sessions *usecase.Sessions,
	handler *api.ChartsHandler,
	hub *ws.Hub,
	pipelines mid.Pipelines,
	limiter *ratelimit.Limiter,
	archive drepo.SampleArchive,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	c cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		sessions:  sessions,
		handler:   handler,
		hub:       hub,
		pipelines: pipelines,
		limiter:   limiter,
		archive:   archive,
		chClient:  chClient,
		producer:  producer,
		cache:     c,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// Start brings up sink pipelines, the HTTP server and, when configured, every chart session.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, p := range a.pipelines {
		p.Start(runCtx)
		a.log.Info("sink pipeline started", applogger.String("sink", p.Name()))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithAddr(a.cfg.Server.Host, a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowRequest),
		xhttp.WithLogger(a.log),
		xhttp.WithCORS(a.cfg.Server.AllowOrigins...),
		xhttp.WithHealthCheck(a.health),
		xhttp.WithMetricsPath(""),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	if a.limiter != nil {
		go a.pruneLimiter(runCtx)
	}

	if a.cfg.AutoStart {
		if err := a.handler.StartConfigured(runCtx); err != nil {
			return fmt.Errorf("start charts: %w", err)
		}
		a.log.Info("chart sessions started", applogger.Int("charts", len(a.sessions.Running())))
	}
	return nil
}

// health probes the sample archive and the Redis-backed cache when they are enabled.
func (a *App) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var errs []error
	if a.archive != nil {
		if err := a.archive.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if p, ok := a.cache.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Prune()
		}
	}
}

// shutdown stops sessions before the sinks they feed, then the HTTP server, then
// closes infrastructure clients.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.sessions.StopAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop sessions: %w", err))
	}
	a.hub.Close()

	for _, p := range a.pipelines {
		if err := p.Stop(ctx); err != nil {
			a.log.Warn("sink pipeline stop error", applogger.String("sink", p.Name()), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	// the log collector publishes through the producer, so detach it first
	a.log.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
