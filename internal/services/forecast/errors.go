package forecast

import "errors"

var (
	// ErrInsufficientData is returned when fewer than two points are available for an interval.
	ErrInsufficientData = errors.New("forecast: insufficient data")
	// ErrNumericInstability is returned when fitting or prediction produces NaN or Inf.
	ErrNumericInstability = errors.New("forecast: numeric instability")
	// ErrNotEnoughSamples means the window is at or below the minimum sample count; nothing was computed.
	ErrNotEnoughSamples = errors.New("forecast: not enough samples")
)
