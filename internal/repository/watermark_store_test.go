package repository

import (
	"testing"
	"time"

	"SensorPull/internal/domain/models"
)

func TestWatermarkInitIsIdempotent(t *testing.T) {
	s := NewMemoryWatermarkStore()
	t0 := time.Unix(100, 0)

	w := s.Init(1, models.WatermarkSampleTime, t0)
	if !w.Position.Equal(t0) || w.Advances != 0 {
		t.Fatalf("unexpected initial watermark %+v", w)
	}
	again := s.Init(1, models.WatermarkSampleTime, t0.Add(time.Hour))
	if !again.Position.Equal(t0) {
		t.Fatalf("Init overwrote existing watermark: %+v", again)
	}
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	s := NewMemoryWatermarkStore()
	t0 := time.Unix(100, 0)
	s.Init(1, models.WatermarkSampleTime, t0)

	if !s.Advance(1, models.WatermarkSampleTime, t0.Add(2*time.Second), t0) {
		t.Fatalf("forward advance refused")
	}
	if s.Advance(1, models.WatermarkSampleTime, t0.Add(time.Second), t0) {
		t.Fatalf("backward advance accepted")
	}
	if !s.Advance(1, models.WatermarkSampleTime, t0.Add(2*time.Second), t0) {
		t.Fatalf("equal position should be accepted")
	}

	w, ok := s.Get(1)
	if !ok || !w.Position.Equal(t0.Add(2*time.Second)) || w.Advances != 2 {
		t.Fatalf("unexpected watermark %+v", w)
	}
}

func TestWatermarkSnapshotSorted(t *testing.T) {
	s := NewMemoryWatermarkStore()
	now := time.Unix(0, 0)
	for _, id := range []int64{3, 1, 2} {
		s.Init(id, models.WatermarkFetchTime, now)
	}
	snap := s.Snapshot()
	if len(snap) != 3 || snap[0].SourceID != 1 || snap[2].SourceID != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	snap[0].Position = now.Add(time.Hour)
	if w, _ := s.Get(1); !w.Position.Equal(now) {
		t.Fatalf("snapshot aliases store state")
	}
}
