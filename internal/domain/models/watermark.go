package models

import "time"

// WatermarkKind tells what the watermark position was derived from.
type WatermarkKind string

const (
	// WatermarkFetchTime is the wall clock of the last successful fetch (categorical sources).
	WatermarkFetchTime WatermarkKind = "fetch_time"
	// WatermarkSampleTime is the x of the last sample delivered (timeseries sources).
	WatermarkSampleTime WatermarkKind = "sample_time"
)

// Watermark marks the boundary between delivered and not-yet-delivered data of one source.
type Watermark struct {
	SourceID  int64         `json:"source_id"`
	Kind      WatermarkKind `json:"kind"`
	Position  time.Time     `json:"position"`
	UpdatedAt time.Time     `json:"updated_at"`
	Advances  int64         `json:"advances"`
}
