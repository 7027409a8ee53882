package repository

import (
	"context"
	"time"

	"SensorPull/internal/domain/models"
)

// FetchClient pulls samples newer than a watermark from one data source.
// An empty batch means "no new data"; failures are *models.FetchError.
type FetchClient interface {
	Fetch(ctx context.Context, source models.DataSource, since models.Watermark) (models.Batch, error)
}

// WatermarkStore keeps one cursor per data source.
type WatermarkStore interface {
	Get(sourceID int64) (models.Watermark, bool)
	Init(sourceID int64, kind models.WatermarkKind, now time.Time) models.Watermark
	Advance(sourceID int64, kind models.WatermarkKind, pos, now time.Time) bool
	Snapshot() []models.Watermark
}

// SampleBuffer holds the trailing samples of every source delivered on a bus.
type SampleBuffer interface {
	Append(sourceID int64, samples []models.Sample)
	Latest(sourceID int64, n int) []models.Sample
	Len(sourceID int64) int
}

// ForecastStore keeps the latest ForecastState per (chart, source).
type ForecastStore interface {
	Save(ctx context.Context, state models.ForecastState) error
	Latest(ctx context.Context, chartID, sourceID int64) (models.ForecastState, bool, error)
}

// BatchSink is a downstream destination for fetched batches (archive, broker).
type BatchSink interface {
	Name() string
	WriteBatch(ctx context.Context, b models.Batch) error
	Close() error
}

// SampleArchive stores delivered samples for later inspection.
type SampleArchive interface {
	BatchSink
	Query(ctx context.Context, sourceID int64, from, to time.Time, limit int) ([]models.Sample, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordBatchDelivered(source string, samples int)
	RecordError(kind string)
	RecordWatermark(source string, position time.Time)
	RecordLastValue(source string, y float64)
	RecordLatency(op string, seconds float64)
}
