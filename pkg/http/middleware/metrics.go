package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "SensorPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds the request collectors. Labels use the echo route template,
// never the raw path, to keep cardinality bounded.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorpull_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensorpull_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensorpull_http_response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 7),
		}, []string{"route"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "sensorpull_http_in_flight_requests",
			Help: "Requests being served, open streams included.",
		}),
	}
}

var (
	defaultOnce sync.Once
	defaultHTTP *HTTPMetrics
)

// DefaultHTTPMetrics registers the collectors on the default registry once.
func DefaultHTTPMetrics() *HTTPMetrics {
	defaultOnce.Do(func() { defaultHTTP = NewHTTPMetrics(prometheus.DefaultRegisterer) })
	return defaultHTTP
}

// Middleware records every request. Handler errors are rendered here so the final
// status is known; 5xx responses are logged as errors and requests slower than slow
// as warnings.
func (m *HTTPMetrics) Middleware(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			if c.IsWebSocket() && status == http.StatusOK {
				// the upgrader hijacks the connection without telling echo
				status = http.StatusSwitchingProtocols
			}

			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(route, method).Observe(took.Seconds())
			m.size.WithLabelValues(route).Observe(float64(c.Response().Size))

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", took),
			}
			switch {
			case status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && took >= slow && !c.IsWebSocket():
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
