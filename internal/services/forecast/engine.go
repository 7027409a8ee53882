package forecast

import (
	"fmt"

	"SensorPull/internal/domain/models"
	domsvc "SensorPull/internal/domain/service"
)

// Config holds the engine parameters.
type Config struct {
	Window     int // trailing points analysed
	MinSamples int // forecasting needs strictly more points than this
	Order      int // autoregressive model order
	Horizon    int // points forecasted per cycle
}

// DefaultConfig returns window 100, threshold 5, order 10, horizon 15.
func DefaultConfig() Config {
	return Config{Window: 100, MinSamples: 5, Order: 10, Horizon: 15}
}

// Engine computes rolling statistics and an iterated Burg AR forecast.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, filling zero fields from DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.Order <= 0 {
		cfg.Order = def.Order
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Select applies the window bound and discontinuity trimming.
func (e *Engine) Select(points []models.Point) []models.Point {
	return TrimDiscontinuity(Tail(points, e.cfg.Window))
}

// Run analyses the trailing window of points. When the selected window holds
// MinSamples points or fewer it returns ErrNotEnoughSamples and computes nothing.
func (e *Engine) Run(points []models.Point) (models.Statistics, []models.Point, error) {
	window := e.Select(points)
	if len(window) <= e.cfg.MinSamples {
		return models.Statistics{}, nil, fmt.Errorf("%d points, need more than %d: %w", len(window), e.cfg.MinSamples, ErrNotEnoughSamples)
	}

	stats := Describe(ys(window))
	if !finite(stats.Max, stats.Min, stats.Mean, stats.StdDev) {
		return models.Statistics{}, nil, fmt.Errorf("statistics: %w", ErrNumericInstability)
	}

	out, err := e.Forecast(window)
	if err != nil {
		return models.Statistics{}, nil, err
	}
	return stats, out, nil
}

// Forecast extends window by Horizon points, refitting the model on the
// extended series before every step, and returns only the new points.
func (e *Engine) Forecast(window []models.Point) ([]models.Point, error) {
	dt, err := AverageInterval(xs(window))
	if err != nil {
		return nil, err
	}

	series := make([]models.Point, len(window), len(window)+e.cfg.Horizon)
	copy(series, window)
	values := ys(window)

	for i := 0; i < e.cfg.Horizon; i++ {
		coeffs, err := BurgCoefficients(values, e.cfg.Order)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		y := Convolve(values, coeffs)
		if !finite(y) {
			return nil, fmt.Errorf("step %d prediction: %w", i+1, ErrNumericInstability)
		}
		next := models.Point{X: series[len(series)-1].X + dt, Y: y}
		series = append(series, next)
		values = append(values, y)
	}

	out := make([]models.Point, e.cfg.Horizon)
	copy(out, series[len(series)-e.cfg.Horizon:])
	return out, nil
}

var _ domsvc.Forecaster = (*Engine)(nil)
