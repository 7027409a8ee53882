package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SensorPull/internal/domain/models"
)

type fakeTicker struct {
	period time.Duration
	c      chan time.Time
	once   sync.Once
	done   chan struct{}
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.done) }) }

// fakeClock hands out tickers that only fire when the test calls tick.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan *fakeTicker, 16)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{period: d, c: make(chan time.Time), done: make(chan struct{})}
	c.created <- t
	return t
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) ticker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-c.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker created")
		return nil
	}
}

// fire advances the clock by one period and delivers the tick to the task.
func (c *fakeClock) fire(t *testing.T, tk *fakeTicker) {
	t.Helper()
	now := c.advance(tk.period)
	select {
	case tk.c <- now:
	case <-time.After(2 * time.Second):
		t.Fatalf("tick not consumed")
	}
}

type fetchResult struct {
	batch models.Batch
	err   error
}

// scriptedFetch returns queued results in order, or one fresh sample per call when the script is empty.
type scriptedFetch struct {
	mu     sync.Mutex
	clock  *fakeClock
	script []fetchResult
	calls  []models.Watermark
	block  chan struct{}
}

func (f *scriptedFetch) Fetch(ctx context.Context, source models.DataSource, since models.Watermark) (models.Batch, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, since)
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		return r.batch, r.err
	}
	now := f.clock.Now()
	return models.Batch{Samples: []models.Sample{{Time: now, Y: float64(len(f.calls))}}, FetchedAt: now}, nil
}

func (f *scriptedFetch) sinces() []models.Watermark {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Watermark(nil), f.calls...)
}

// recorder is a subscriber that forwards every batch to a channel.
type recorder struct {
	ch chan models.Batch
}

func newRecorder() *recorder { return &recorder{ch: make(chan models.Batch, 64)} }

func (r *recorder) HandleBatch(_ context.Context, b models.Batch) error {
	r.ch <- b
	return nil
}

func (r *recorder) next(t *testing.T) models.Batch {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("no batch delivered")
		return models.Batch{}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case b := <-r.ch:
		t.Fatalf("unexpected delivery %+v", b)
	case <-time.After(wait):
	}
}

func lineChart(sources ...models.DataSource) models.Chart {
	return models.Chart{ID: 1, Kind: models.ChartLine, DataSources: sources, BufferSize: 500}
}

func timeseries(id int64, hz float64) models.DataSource {
	return models.DataSource{ID: id, SampleFrequency: hz, Category: models.CategoryTimeseries}
}

type fetchFunc func(ctx context.Context, source models.DataSource, since models.Watermark) (models.Batch, error)

func (f fetchFunc) Fetch(ctx context.Context, source models.DataSource, since models.Watermark) (models.Batch, error) {
	return f(ctx, source, since)
}
