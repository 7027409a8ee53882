package repository

import (
	"context"
	"sync"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
)

// MemorySampleBuffer retains the trailing samples of every source. Appends come
// from the fan-out path and reads from the forecasting task, on independent schedules.
type MemorySampleBuffer struct {
	mu       sync.RWMutex
	capacity int
	data     map[int64][]models.Sample
}

// NewMemorySampleBuffer creates a buffer keeping at most capacity samples per source.
func NewMemorySampleBuffer(capacity int) *MemorySampleBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemorySampleBuffer{capacity: capacity, data: make(map[int64][]models.Sample)}
}

func (b *MemorySampleBuffer) Append(sourceID int64, samples []models.Sample) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := append(b.data[sourceID], samples...)
	if over := len(buf) - b.capacity; over > 0 {
		// compact instead of reslicing so the backing array does not grow forever
		buf = append(buf[:0:0], buf[over:]...)
	}
	b.data[sourceID] = buf
}

// Latest returns a copy of the last n samples of a source (all of them when n <= 0).
func (b *MemorySampleBuffer) Latest(sourceID int64, n int) []models.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buf := b.data[sourceID]
	if n > 0 && len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	out := make([]models.Sample, len(buf))
	copy(out, buf)
	return out
}

func (b *MemorySampleBuffer) Len(sourceID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data[sourceID])
}

// HandleBatch makes the buffer a bus subscriber.
func (b *MemorySampleBuffer) HandleBatch(_ context.Context, batch models.Batch) error {
	b.Append(batch.Source.ID, batch.Samples)
	return nil
}

var _ repository.SampleBuffer = (*MemorySampleBuffer)(nil)
