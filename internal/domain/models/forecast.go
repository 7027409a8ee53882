package models

import "time"

// Statistics summarises y over the analysed window.
type Statistics struct {
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdev"`
	Count  int     `json:"count"`
}

// ForecastState is the latest statistics and forecast of one source of a chart.
// It is recomputed, never patched.
type ForecastState struct {
	ChartID    int64      `json:"chart_id"`
	SourceID   int64      `json:"source_id"`
	Stats      Statistics `json:"stats"`
	Forecast   []Point    `json:"forecast"`
	ComputedAt time.Time  `json:"computed_at"`
}
