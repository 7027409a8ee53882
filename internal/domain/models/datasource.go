package models

import (
	"fmt"
	"math"
	"time"
)

// Category classifies how a data source orders its x values.
type Category string

const (
	CategoryBar        Category = "bar"
	CategoryTimeseries Category = "timeseries"
)

// ChartKind is the visual kind of a chart. Bar is categorical, every other kind is time-ordered.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartPie     ChartKind = "pie"
	ChartScatter ChartKind = "scatter"
)

// IsCategorical reports whether the chart plots category keys instead of timestamps.
func (k ChartKind) IsCategorical() bool { return k == ChartBar }

// DataSource describes one external source of samples.
type DataSource struct {
	ID              int64    `json:"id" yaml:"id" validate:"required"`
	Label           string   `json:"label" yaml:"label"`
	SampleFrequency float64  `json:"sample_frequency" yaml:"sample_frequency" validate:"gt=0"`
	Category        Category `json:"category" yaml:"category" default:"timeseries" validate:"oneof=bar timeseries"`
}

// MaxPollPeriod bounds the period of very slow sources; MinSampleFrequency is its inverse in Hz.
const (
	MaxPollPeriod      = 24 * time.Hour
	MinSampleFrequency = 1.0 / (24 * 60 * 60)
)

// PollPeriod returns 1s / SampleFrequency, clamped to [1ns, MaxPollPeriod].
// Zero means the frequency is unusable (non-positive, NaN or infinite).
func (d DataSource) PollPeriod() time.Duration {
	f := d.SampleFrequency
	if !(f > 0) || math.IsInf(f, 1) {
		return 0
	}
	if f < MinSampleFrequency {
		return MaxPollPeriod
	}
	p := float64(time.Second) / f
	if p < 1 {
		return time.Nanosecond
	}
	return min(time.Duration(p), MaxPollPeriod)
}

// Key returns a stable label value used in metrics and cache keys.
func (d DataSource) Key() string { return fmt.Sprintf("%d", d.ID) }

// Chart groups the data sources plotted together in one display session.
type Chart struct {
	ID          int64        `json:"id" yaml:"id" validate:"required"`
	Label       string       `json:"label" yaml:"label"`
	Kind        ChartKind    `json:"kind" yaml:"kind" default:"line" validate:"oneof=bar line pie scatter"`
	DataSources []DataSource `json:"data_sources" yaml:"data_sources" validate:"dive"`
	BufferSize  int          `json:"buffer_size" yaml:"buffer_size" default:"500" validate:"gte=0"`
}

// IsCategorical reports whether samples of ds are fetched and stored as categories.
// The chart kind wins: a bar chart treats every source as categorical.
func (c Chart) IsCategorical(ds DataSource) bool {
	return c.Kind.IsCategorical() || ds.Category == CategoryBar
}

// Forecastable reports whether ds takes part in forecasting.
func (c Chart) Forecastable(ds DataSource) bool { return !c.IsCategorical(ds) }
