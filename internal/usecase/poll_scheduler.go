package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SensorPull/internal/domain/models"
	drepo "SensorPull/internal/domain/repository"
	applogger "SensorPull/pkg/logger"
)

// Publisher is where a poll task hands successful batches.
type Publisher interface {
	Publish(ctx context.Context, b models.Batch) int
}

// PollScheduler runs one periodic fetch task per data source of a chart.
// Ticks of one task never overlap; tasks of different sources are independent.
type PollScheduler struct {
	chart        models.Chart
	fetch        drepo.FetchClient
	watermarks   drepo.WatermarkStore
	pub          Publisher
	metrics      drepo.Metrics
	log          *applogger.Logger
	clock        Clock
	fetchTimeout time.Duration

	mu      sync.Mutex
	tasks   map[int64]*pollTask
	wg      sync.WaitGroup
	started bool
}

type pollTask struct {
	source      models.DataSource
	categorical bool
	period      time.Duration
	cancel      context.CancelFunc

	// publishMu serialises the publish step with Stop.
	publishMu sync.Mutex
	stopped   bool
}

// SchedulerOption configures PollScheduler.
type SchedulerOption func(*PollScheduler)

// WithClock sets the clock driving ticks and watermarks.
func WithClock(c Clock) SchedulerOption {
	return func(s *PollScheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFetchTimeout bounds a single fetch call.
func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *PollScheduler) {
		s.fetchTimeout = d
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *PollScheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewPollScheduler creates a scheduler for chart. Nothing runs until Start.
func NewPollScheduler(
	chart models.Chart,
	fetch drepo.FetchClient,
	watermarks drepo.WatermarkStore,
	pub Publisher,
	metrics drepo.Metrics,
	opts ...SchedulerOption,
) *PollScheduler {
	s := &PollScheduler{
		chart:      chart,
		fetch:      fetch,
		watermarks: watermarks,
		pub:        pub,
		metrics:    metrics,
		log:        applogger.Nop(),
		clock:      SystemClock{},
		tasks:      make(map[int64]*pollTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one task per data source. A chart without sources starts nothing.
func (s *PollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("poll scheduler already started")
	}
	s.started = true

	for _, ds := range s.chart.DataSources {
		period := ds.PollPeriod()
		if period <= 0 {
			s.log.Warn("data source skipped: non-positive frequency",
				applogger.Int64("source_id", ds.ID),
				applogger.Float64("frequency", ds.SampleFrequency),
			)
			continue
		}

		categorical := s.chart.IsCategorical(ds)
		effective := ds
		if categorical {
			effective.Category = models.CategoryBar
		}

		taskCtx, cancel := context.WithCancel(ctx)
		task := &pollTask{source: effective, categorical: categorical, period: period, cancel: cancel}
		s.tasks[ds.ID] = task

		s.wg.Add(1)
		go s.run(taskCtx, task)
	}

	s.log.Info("poll scheduler started",
		applogger.Int64("chart_id", s.chart.ID),
		applogger.Int("sources", len(s.tasks)),
	)
	return nil
}

// Stop cancels every task. When it returns no task will publish again, even if a
// fetch is still in flight; use Wait to block until the goroutines exit.
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	tasks := make([]*pollTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		t.publishMu.Lock()
		t.stopped = true
		t.publishMu.Unlock()
	}
}

// Wait blocks until all task goroutines have exited or ctx is done.
func (s *PollScheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Periods returns the tick period of every running task keyed by source id.
func (s *PollScheduler) Periods() map[int64]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]time.Duration, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = t.period
	}
	return out
}

func (s *PollScheduler) run(ctx context.Context, t *pollTask) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx, t)
		}
	}
}

// tick performs one fetch, watermark update and publish.
func (s *PollScheduler) tick(ctx context.Context, t *pollTask) {
	// a tick and the cancellation can be ready together; select picks either
	if ctx.Err() != nil {
		return
	}
	src := t.source
	kind := models.WatermarkSampleTime
	if t.categorical {
		kind = models.WatermarkFetchTime
	}

	wm, ok := s.watermarks.Get(src.ID)
	if !ok {
		wm = s.watermarks.Init(src.ID, kind, s.clock.Now())
	}

	fctx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	batch, err := s.fetch.Fetch(fctx, src, wm)
	s.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.metrics.RecordError("fetch")
		var fe *models.FetchError
		s.log.Warn("fetch failed",
			applogger.Int64("chart_id", s.chart.ID),
			applogger.Int64("source_id", src.ID),
			applogger.Bool("transient", errors.As(err, &fe) && fe.Transient()),
			applogger.Error(err),
		)
		return
	}
	batch.ChartID = s.chart.ID
	batch.Source = src

	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if t.stopped {
		return
	}

	now := s.clock.Now()
	if t.categorical {
		s.advance(src, kind, now, now)
	} else if last, ok := batch.Last(); ok {
		s.advance(src, kind, last.Time, now)
	}

	s.pub.Publish(ctx, batch)
	s.metrics.RecordBatchDelivered(src.Key(), len(batch.Samples))
	if last, ok := batch.Last(); ok {
		s.metrics.RecordLastValue(src.Key(), last.Y)
	}
}

func (s *PollScheduler) advance(src models.DataSource, kind models.WatermarkKind, pos, now time.Time) {
	if !s.watermarks.Advance(src.ID, kind, pos, now) {
		s.log.Warn("watermark not advanced: position behind current",
			applogger.Int64("source_id", src.ID),
			applogger.Time("position", pos),
		)
		return
	}
	s.metrics.RecordWatermark(src.Key(), pos)
}
