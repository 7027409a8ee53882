package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"SensorPull/pkg/http/middleware"
	applogger "SensorPull/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar mounts a handler's routes on the server.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

type serverConfig struct {
	addr          string
	readTimeout   time.Duration
	writeTimeout  time.Duration
	allowOrigins  []string
	metricsPath   string
	slowThreshold time.Duration
	logger        *applogger.Logger
	health        func(ctx context.Context) error
}

// ServerOption configures Server.
type ServerOption func(*serverConfig)

// WithAddr sets the listen address; port 0 picks a free port.
func WithAddr(host string, port int) ServerOption {
	return func(c *serverConfig) { c.addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

// WithTimeouts bounds reading a request and writing a response. Websocket
// streams are exempt once upgraded.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// WithCORS allows cross-origin calls from origins ("*" for any); none disables CORS.
func WithCORS(origins ...string) ServerOption {
	return func(c *serverConfig) { c.allowOrigins = origins }
}

// WithMetricsPath sets the Prometheus scrape path; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *serverConfig) { c.metricsPath = path }
}

// WithSlowThreshold logs requests slower than d as warnings; 0 disables.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.slowThreshold = d }
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// WithHealthCheck sets the probe behind /healthz.
func WithHealthCheck(fn func(ctx context.Context) error) ServerOption {
	return func(c *serverConfig) { c.health = fn }
}

// Server is the echo instance serving the API, /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	addr string
	log  *applogger.Logger
	ln   net.Listener
}

func NewServer(handler RouteRegistrar, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		addr:          ":8080",
		readTimeout:   10 * time.Second,
		writeTimeout:  10 * time.Second,
		metricsPath:   "/metrics",
		slowThreshold: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	l := cfg.logger
	if l == nil {
		l = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(l)
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	e.Use(echomw.RequestID())
	// metrics wrap recovery so panics are counted as 500s
	e.Use(middleware.DefaultHTTPMetrics().Middleware(l, cfg.slowThreshold))
	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l))
	if len(cfg.allowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.allowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	e.GET("/healthz", func(c echo.Context) error {
		if cfg.health != nil {
			if err := cfg.health(c.Request().Context()); err != nil {
				return AppErrorResponse(c, UnavailableErrorf("unhealthy: %v", err))
			}
		}
		return SuccessResponse(c, map[string]string{"status": "ok"})
	})
	if cfg.metricsPath != "" {
		e.GET(cfg.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	if handler != nil {
		handler.RegisterRoutes(e)
	}

	return &Server{echo: e, addr: cfg.addr, log: l}
}

// Start binds the listen address, so a taken port is reported here, then serves
// in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.echo.Listener = ln

	go func() {
		s.log.Info("http server: listening", applogger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address after Start, nil before.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server: stopped")
	return nil
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
