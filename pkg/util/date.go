package util

import (
	"math"
	"strconv"
	"time"
)

// unixMillisThreshold separates unix seconds from unix milliseconds (year 5138 in seconds).
const unixMillisThreshold = 1e11

// ParseTime tries RFC3339Nano then unix seconds or milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
		return FromUnixNumber(v)
	}
	return time.Time{}, false
}

// FromUnixNumber converts a unix timestamp in seconds or milliseconds into UTC time.
func FromUnixNumber(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if v >= unixMillisThreshold {
		return time.UnixMilli(int64(v)).UTC(), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), true
}

// maxUnixMillis is the largest magnitude a millisecond x may carry (about 275k years).
const maxUnixMillis = 8.64e15

// FromUnixMillis reads v as milliseconds since the epoch. Zero and negative values
// are valid instants; only non-finite or out-of-range values are rejected.
func FromUnixMillis(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxUnixMillis {
		return time.Time{}, false
	}
	ms, frac := math.Modf(v)
	return time.UnixMilli(int64(ms)).Add(time.Duration(math.Round(frac * 1e6))).UTC(), true
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
