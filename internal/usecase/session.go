package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"SensorPull/internal/domain/models"
	drepo "SensorPull/internal/domain/repository"
	domsvc "SensorPull/internal/domain/service"
	internalrepo "SensorPull/internal/repository"
	applogger "SensorPull/pkg/logger"
)

var (
	ErrSessionRunning  = errors.New("chart session already running")
	ErrSessionNotFound = errors.New("chart session not found")
)

// NamedSubscriber is a subscriber attached to every new session bus.
type NamedSubscriber struct {
	Name       string
	Subscriber Subscriber
}

// Session is one running display session of a chart: its bus, watermarks, buffer,
// polling tasks and forecasting timer. It is discarded as a whole on Stop.
type Session struct {
	ID         string
	Chart      models.Chart
	StartedAt  time.Time
	Bus        *Bus
	Watermarks drepo.WatermarkStore
	Buffer     drepo.SampleBuffer

	scheduler *PollScheduler
	runner    *ForecastRunner
	cancel    context.CancelFunc
}

// SessionConfig holds the parameters shared by every session.
type SessionConfig struct {
	FetchTimeout     time.Duration
	ForecastInterval time.Duration
	ForecastWindow   int
}

// Sessions owns the running chart sessions.
type Sessions struct {
	fetch       drepo.FetchClient
	engine      domsvc.Forecaster
	store       drepo.ForecastStore
	metrics     drepo.Metrics
	log         *applogger.Logger
	clock       Clock
	cfg         SessionConfig
	subscribers []NamedSubscriber
	listeners   []domsvc.ForecastListener

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewSessions creates the session manager. subscribers are attached to every new bus
// after the session's own sample buffer; listeners receive every forecast.
func NewSessions(
	fetch drepo.FetchClient,
	engine domsvc.Forecaster,
	store drepo.ForecastStore,
	metrics drepo.Metrics,
	log *applogger.Logger,
	cfg SessionConfig,
	subscribers []NamedSubscriber,
	listeners []domsvc.ForecastListener,
) *Sessions {
	if log == nil {
		log = applogger.Nop()
	}
	return &Sessions{
		fetch:       fetch,
		engine:      engine,
		store:       store,
		metrics:     metrics,
		log:         log,
		clock:       SystemClock{},
		cfg:         cfg,
		subscribers: subscribers,
		listeners:   listeners,
		sessions:    make(map[int64]*Session),
	}
}

// SetClock replaces the clock used by sessions started afterwards.
func (m *Sessions) SetClock(c Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = c
}

// Start builds and starts a session for chart.
func (m *Sessions) Start(ctx context.Context, chart models.Chart) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[chart.ID]; ok {
		return nil, fmt.Errorf("chart %d: %w", chart.ID, ErrSessionRunning)
	}

	log := m.log.With(applogger.Int64("chart_id", chart.ID))
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	retention := chart.BufferSize
	if m.cfg.ForecastWindow > retention {
		retention = m.cfg.ForecastWindow
	}
	buffer := internalrepo.NewMemorySampleBuffer(retention)
	watermarks := internalrepo.NewMemoryWatermarkStore()

	bus := NewBus(m.metrics, log)
	bus.Subscribe("buffer", buffer)
	for _, s := range m.subscribers {
		bus.Subscribe(s.Name, s.Subscriber)
	}

	scheduler := NewPollScheduler(chart, m.fetch, watermarks, bus, m.metrics,
		WithClock(m.clock),
		WithFetchTimeout(m.cfg.FetchTimeout),
		WithSchedulerLogger(log),
	)
	runner := NewForecastRunner(chart, buffer, m.engine, m.store, m.metrics,
		WithRunnerClock(m.clock),
		WithInterval(m.cfg.ForecastInterval),
		WithWindow(m.cfg.ForecastWindow),
		WithListeners(m.listeners...),
		WithRunnerLogger(log),
	)

	sess := &Session{
		ID:         uuid.NewString(),
		Chart:      chart,
		StartedAt:  m.clock.Now(),
		Bus:        bus,
		Watermarks: watermarks,
		Buffer:     buffer,
		scheduler:  scheduler,
		runner:     runner,
		cancel:     cancel,
	}

	if err := scheduler.Start(sessCtx); err != nil {
		cancel()
		return nil, err
	}
	runner.Start(sessCtx)

	m.sessions[chart.ID] = sess
	log.Info("chart session started", applogger.String("session_id", sess.ID))
	return sess, nil
}

// Stop cancels every task of the chart's session. No batch is published and no
// forecast computed for it after Stop returns.
func (m *Sessions) Stop(chartID int64) error {
	m.mu.Lock()
	sess, ok := m.sessions[chartID]
	if ok {
		delete(m.sessions, chartID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("chart %d: %w", chartID, ErrSessionNotFound)
	}

	sess.scheduler.Stop()
	sess.runner.Stop()
	sess.cancel()
	m.log.Info("chart session stopped",
		applogger.Int64("chart_id", chartID),
		applogger.String("session_id", sess.ID),
	)
	return nil
}

// StopAll stops every session and waits for their poll goroutines until ctx expires.
func (m *Sessions) StopAll(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.scheduler.Stop()
		s.runner.Stop()
		s.cancel()
	}
	for _, s := range all {
		if err := s.scheduler.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the running session of a chart.
func (m *Sessions) Get(chartID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chartID]
	return s, ok
}

// Running returns the ids of running charts in ascending order.
func (m *Sessions) Running() []int64 {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Subscribe adds sub to the bus of a running chart.
func (m *Sessions) Subscribe(chartID int64, name string, sub Subscriber) error {
	s, ok := m.Get(chartID)
	if !ok {
		return fmt.Errorf("chart %d: %w", chartID, ErrSessionNotFound)
	}
	s.Bus.Subscribe(name, sub)
	return nil
}

// Wait blocks until the session's poll goroutines have exited.
func (s *Session) Wait(ctx context.Context) error {
	return s.scheduler.Wait(ctx)
}
