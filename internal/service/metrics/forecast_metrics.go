package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ForecastLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sensorpull",
			Subsystem: "forecast",
			Name:      "latency_seconds",
			Help:      "Latency of one forecast computation per source",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"chart"},
	)

	ForecastCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sensorpull",
			Subsystem: "forecast",
			Name:      "cycles_total",
			Help:      "Forecast cycles by outcome (ok, skipped, unstable, error)",
		},
		[]string{"chart", "result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ForecastLatency, ForecastCycles)
	})
}
