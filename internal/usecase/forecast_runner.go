package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"SensorPull/internal/domain/models"
	drepo "SensorPull/internal/domain/repository"
	domsvc "SensorPull/internal/domain/service"
	svcmetrics "SensorPull/internal/service/metrics"
	"SensorPull/internal/services/forecast"
	applogger "SensorPull/pkg/logger"
)

// ForecastRunner recomputes statistics and forecasts of a chart's time-ordered
// sources on its own timer, reading whatever the bus has delivered to the buffer.
type ForecastRunner struct {
	chart     models.Chart
	buffer    drepo.SampleBuffer
	engine    domsvc.Forecaster
	store     drepo.ForecastStore
	listeners []domsvc.ForecastListener
	metrics   drepo.Metrics
	log       *applogger.Logger
	clock     Clock
	interval  time.Duration
	window    int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// RunnerOption configures ForecastRunner.
type RunnerOption func(*ForecastRunner)

// WithRunnerClock sets the clock driving cycles.
func WithRunnerClock(c Clock) RunnerOption {
	return func(r *ForecastRunner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithInterval sets the cycle period.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *ForecastRunner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithWindow sets how many trailing samples are read per source.
func WithWindow(n int) RunnerOption {
	return func(r *ForecastRunner) {
		if n > 0 {
			r.window = n
		}
	}
}

// WithListeners registers listeners notified after each successful cycle.
func WithListeners(ls ...domsvc.ForecastListener) RunnerOption {
	return func(r *ForecastRunner) {
		r.listeners = append(r.listeners, ls...)
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *applogger.Logger) RunnerOption {
	return func(r *ForecastRunner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewForecastRunner creates a runner; defaults are a 5s interval and a 100 sample window.
func NewForecastRunner(
	chart models.Chart,
	buffer drepo.SampleBuffer,
	engine domsvc.Forecaster,
	store drepo.ForecastStore,
	metrics drepo.Metrics,
	opts ...RunnerOption,
) *ForecastRunner {
	r := &ForecastRunner{
		chart:    chart,
		buffer:   buffer,
		engine:   engine,
		store:    store,
		metrics:  metrics,
		log:      applogger.Nop(),
		clock:    SystemClock{},
		interval: 5 * time.Second,
		window:   forecast.DefaultConfig().Window,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the forecasting timer. Bar charts have nothing to forecast and start nothing.
func (r *ForecastRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || !r.hasForecastable() {
		return
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C():
				r.RunOnce(runCtx)
			}
		}
	}()
}

// Stop cancels the timer and waits for a running cycle to finish.
func (r *ForecastRunner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// RunOnce runs one cycle over every forecastable source and returns how many states were replaced.
func (r *ForecastRunner) RunOnce(ctx context.Context) int {
	updated := 0
	chartLabel := strconv.FormatInt(r.chart.ID, 10)
	for _, ds := range r.chart.DataSources {
		if !r.chart.Forecastable(ds) {
			continue
		}
		if ctx.Err() != nil {
			return updated
		}

		start := time.Now()
		state, err := r.forecastSource(ds)
		svcmetrics.ForecastLatency.WithLabelValues(chartLabel).Observe(time.Since(start).Seconds())

		switch {
		case errors.Is(err, forecast.ErrNotEnoughSamples):
			svcmetrics.ForecastCycles.WithLabelValues(chartLabel, "skipped").Inc()
			continue
		case errors.Is(err, forecast.ErrNumericInstability):
			svcmetrics.ForecastCycles.WithLabelValues(chartLabel, "unstable").Inc()
			r.fail(ds, err)
			continue
		case err != nil:
			svcmetrics.ForecastCycles.WithLabelValues(chartLabel, "error").Inc()
			r.fail(ds, err)
			continue
		}

		if err := r.store.Save(ctx, state); err != nil {
			svcmetrics.ForecastCycles.WithLabelValues(chartLabel, "error").Inc()
			r.fail(ds, err)
			continue
		}
		svcmetrics.ForecastCycles.WithLabelValues(chartLabel, "ok").Inc()
		updated++

		for _, l := range r.listeners {
			l.OnForecast(state)
		}
	}
	return updated
}

func (r *ForecastRunner) forecastSource(ds models.DataSource) (models.ForecastState, error) {
	samples := r.buffer.Latest(ds.ID, r.window)
	points := make([]models.Point, len(samples))
	for i, s := range samples {
		points[i] = models.PointFromSample(s)
	}

	stats, predicted, err := r.engine.Run(points)
	if err != nil {
		return models.ForecastState{}, err
	}
	return models.ForecastState{
		ChartID:    r.chart.ID,
		SourceID:   ds.ID,
		Stats:      stats,
		Forecast:   predicted,
		ComputedAt: r.clock.Now(),
	}, nil
}

func (r *ForecastRunner) fail(ds models.DataSource, err error) {
	r.metrics.RecordError("forecast")
	r.log.Warn("forecast cycle failed, keeping previous state",
		applogger.Int64("chart_id", r.chart.ID),
		applogger.Int64("source_id", ds.ID),
		applogger.Error(err),
	)
}

func (r *ForecastRunner) hasForecastable() bool {
	for _, ds := range r.chart.DataSources {
		if r.chart.Forecastable(ds) {
			return true
		}
	}
	return false
}
