package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
	"SensorPull/pkg/cache"
)

// CacheForecastStore keeps the latest forecast state per (chart, source) and writes
// it through to a cache.Service so a layered Redis cache makes it visible to other
// readers. The local copy is never evicted: a state stays until the next successful
// cycle replaces it, whatever the cache does with its entry.
type CacheForecastStore struct {
	cache cache.Service
	ttl   time.Duration

	mu     sync.RWMutex
	latest map[string]models.ForecastState
}

// NewCacheForecastStore creates a forecast store. ttl only bounds the cached copy;
// ttl <= 0 keeps it until overwritten.
func NewCacheForecastStore(c cache.Service, ttl time.Duration) *CacheForecastStore {
	return &CacheForecastStore{cache: c, ttl: ttl, latest: make(map[string]models.ForecastState)}
}

var _ repository.ForecastStore = (*CacheForecastStore)(nil)

func forecastKey(chartID, sourceID int64) string {
	return cache.Key("forecast", chartID, sourceID)
}

// Save replaces the state of (state.ChartID, state.SourceID).
func (s *CacheForecastStore) Save(ctx context.Context, state models.ForecastState) error {
	key := forecastKey(state.ChartID, state.SourceID)
	s.mu.Lock()
	s.latest[key] = state
	s.mu.Unlock()

	if err := s.cache.Set(ctx, key, state, s.ttl); err != nil {
		return fmt.Errorf("save forecast %d/%d: %w", state.ChartID, state.SourceID, err)
	}
	return nil
}

// Latest returns the last saved state; ok is false when none exists yet. States
// saved by another process are read from the cache.
func (s *CacheForecastStore) Latest(ctx context.Context, chartID, sourceID int64) (models.ForecastState, bool, error) {
	key := forecastKey(chartID, sourceID)
	s.mu.RLock()
	state, ok := s.latest[key]
	s.mu.RUnlock()
	if ok {
		return state, true, nil
	}

	state, err := cache.GetTyped[models.ForecastState](ctx, s.cache, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.ForecastState{}, false, nil
	}
	if err != nil {
		return models.ForecastState{}, false, fmt.Errorf("load forecast %d/%d: %w", chartID, sourceID, err)
	}
	return state, true, nil
}
