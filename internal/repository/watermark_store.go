package repository

import (
	"sort"
	"sync"
	"time"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
)

// MemoryWatermarkStore keeps watermarks in memory. Each key has a single writer
// (its poll task); the mutex only protects the map for readers such as the API.
type MemoryWatermarkStore struct {
	mu sync.RWMutex
	m  map[int64]models.Watermark
}

// NewMemoryWatermarkStore creates an empty store.
func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{m: make(map[int64]models.Watermark)}
}

func (s *MemoryWatermarkStore) Get(sourceID int64) (models.Watermark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.m[sourceID]
	return w, ok
}

// Init sets the watermark to now unless one already exists, and returns the current value.
func (s *MemoryWatermarkStore) Init(sourceID int64, kind models.WatermarkKind, now time.Time) models.Watermark {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.m[sourceID]; ok {
		return w
	}
	w := models.Watermark{SourceID: sourceID, Kind: kind, Position: now, UpdatedAt: now}
	s.m[sourceID] = w
	return w
}

// Advance moves the watermark to pos. It refuses to move backwards and reports whether it moved.
func (s *MemoryWatermarkStore) Advance(sourceID int64, kind models.WatermarkKind, pos, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.m[sourceID]
	if ok && pos.Before(w.Position) {
		return false
	}
	w.SourceID = sourceID
	w.Kind = kind
	w.Position = pos
	w.UpdatedAt = now
	w.Advances++
	s.m[sourceID] = w
	return true
}

// Snapshot returns all watermarks ordered by source id.
func (s *MemoryWatermarkStore) Snapshot() []models.Watermark {
	s.mu.RLock()
	out := make([]models.Watermark, 0, len(s.m))
	for _, w := range s.m {
		out = append(out, w)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

var _ repository.WatermarkStore = (*MemoryWatermarkStore)(nil)
