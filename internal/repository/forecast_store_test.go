package repository

import (
	"context"
	"testing"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/pkg/cache"
)

func TestCacheForecastStoreReplacesState(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheForecastStore(mc, 0)
	ctx := context.Background()

	if _, ok, err := s.Latest(ctx, 1, 2); ok || err != nil {
		t.Fatalf("expected no state, ok=%v err=%v", ok, err)
	}

	first := models.ForecastState{ChartID: 1, SourceID: 2, Stats: models.Statistics{Max: 5, Count: 5},
		Forecast: []models.Point{{X: 1, Y: 1}}, ComputedAt: time.Unix(10, 0).UTC()}
	second := first
	second.Stats.Max = 9
	second.Forecast = []models.Point{{X: 2, Y: 2}, {X: 3, Y: 3}}

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.Latest(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.Stats.Max != 9 || len(got.Forecast) != 2 || !got.ComputedAt.Equal(first.ComputedAt) {
		t.Fatalf("unexpected state %+v", got)
	}
	if _, ok, _ := s.Latest(ctx, 1, 3); ok {
		t.Fatalf("state leaked to another source")
	}
}

func TestCacheForecastStoreKeepsStateThroughExpiryAndEviction(t *testing.T) {
	now := time.Unix(1000, 0)
	mc := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(1),
		cache.WithMemoryCleanup(0),
		cache.WithMemoryClock(func() time.Time { return now }),
	)
	defer mc.Close()
	s := NewCacheForecastStore(mc, time.Minute)
	ctx := context.Background()

	kept := models.ForecastState{ChartID: 1, SourceID: 2, Stats: models.Statistics{Mean: 7, Count: 20}}
	if err := s.Save(ctx, kept); err != nil {
		t.Fatalf("save: %v", err)
	}
	// other sources keep cycling while source 2 stays below the sample threshold
	for id := int64(3); id < 6; id++ {
		if err := s.Save(ctx, models.ForecastState{ChartID: 1, SourceID: id}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	now = now.Add(2 * time.Hour)

	got, ok, err := s.Latest(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if got.Stats.Mean != 7 || got.Stats.Count != 20 {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestCacheForecastStoreReadsSharedCache(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	writer := NewCacheForecastStore(mc, 0)
	if err := writer.Save(ctx, models.ForecastState{ChartID: 4, SourceID: 8, Stats: models.Statistics{Max: 3}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	reader := NewCacheForecastStore(mc, 0)
	got, ok, err := reader.Latest(ctx, 4, 8)
	if err != nil || !ok || got.Stats.Max != 3 {
		t.Fatalf("latest: %+v ok=%v err=%v", got, ok, err)
	}
}
