package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	batchesDelivered *prometheus.CounterVec
	samplesDelivered *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	watermark        *prometheus.GaugeVec
	lastValue        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		batchesDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorpull_batches_delivered_total",
				Help: "Total number of batches published to subscribers",
			},
			[]string{"source"},
		),
		samplesDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorpull_samples_delivered_total",
				Help: "Total number of samples published to subscribers",
			},
			[]string{"source"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		watermark: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sensorpull_watermark_seconds",
				Help: "Current watermark position of a source as unix seconds",
			},
			[]string{"source"},
		),
		lastValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sensorpull_last_value",
				Help: "Last y value delivered for a source",
			},
			[]string{"source"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sensorpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBatchDelivered counts one published batch and its samples.
func (r *Recorder) RecordBatchDelivered(source string, samples int) {
	r.batchesDelivered.WithLabelValues(source).Inc()
	r.samplesDelivered.WithLabelValues(source).Add(float64(samples))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordWatermark records the position of a source watermark.
func (r *Recorder) RecordWatermark(source string, position time.Time) {
	r.watermark.WithLabelValues(source).Set(float64(position.UnixNano()) / 1e9)
}

// RecordLastValue records the last y of a source.
func (r *Recorder) RecordLastValue(source string, y float64) {
	r.lastValue.WithLabelValues(source).Set(y)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordBatchDelivered(string, int)  {}
func (Noop) RecordError(string)               {}
func (Noop) RecordWatermark(string, time.Time) {}
func (Noop) RecordLastValue(string, float64)   {}
func (Noop) RecordLatency(string, float64)     {}
