package models

import "time"

// Sample is one (x, y) observation. Time is set for timeseries sources, Key for categorical ones.
type Sample struct {
	Time time.Time `json:"t,omitempty"`
	Key  string    `json:"key,omitempty"`
	Y    float64   `json:"y"`
}

// Batch is what a single fetch returns for one data source.
type Batch struct {
	ChartID   int64      `json:"chart_id"`
	Source    DataSource `json:"source"`
	Samples   []Sample   `json:"samples"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Last returns the last sample of the batch.
func (b Batch) Last() (Sample, bool) {
	if len(b.Samples) == 0 {
		return Sample{}, false
	}
	return b.Samples[len(b.Samples)-1], true
}

// Point is a numeric (x, y) pair; for timeseries x is unix milliseconds.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointFromSample converts a timeseries sample into a point.
func PointFromSample(s Sample) Point {
	return Point{X: float64(s.Time.UnixMilli()), Y: s.Y}
}
