package models

import (
	"math"
	"testing"
	"time"
)

func TestPollPeriod(t *testing.T) {
	cases := []struct {
		hz   float64
		want time.Duration
	}{
		{2, 500 * time.Millisecond},
		{0.5, 2 * time.Second},
		{MinSampleFrequency, MaxPollPeriod},
		{1e-12, MaxPollPeriod},
		{1e12, time.Nanosecond},
		{0, 0},
		{-1, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		if got := (DataSource{SampleFrequency: tc.hz}).PollPeriod(); got != tc.want {
			t.Errorf("PollPeriod(%v Hz) = %v, want %v", tc.hz, got, tc.want)
		}
	}
}
