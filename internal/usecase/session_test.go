package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SensorPull/internal/domain/models"
	domsvc "SensorPull/internal/domain/service"
	"SensorPull/pkg/metrics"
)

func newTestSessions(t *testing.T, clock *fakeClock, subs ...NamedSubscriber) *Sessions {
	t.Helper()
	m := NewSessions(&scriptedFetch{clock: clock}, &fakeEngine{}, newForecastStore(t), metrics.Noop{}, nil,
		SessionConfig{FetchTimeout: time.Second, ForecastInterval: time.Second, ForecastWindow: 100},
		subs, []domsvc.ForecastListener{})
	m.SetClock(clock)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.StopAll(ctx)
	})
	return m
}

func TestSessionsStartAttachesSubscribers(t *testing.T) {
	clock := newFakeClock(t0)
	rec := newRecorder()
	m := newTestSessions(t, clock, NamedSubscriber{Name: "recorder", Subscriber: rec})

	sess, err := m.Start(context.Background(), lineChart(timeseries(1, 2)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.ID == "" || !sess.StartedAt.Equal(t0) {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.Bus.Len() != 2 {
		t.Fatalf("bus subscribers = %d, want buffer + recorder", sess.Bus.Len())
	}

	var poll *fakeTicker
	for i := 0; i < 2; i++ {
		if tk := clock.ticker(t); tk.period == 500*time.Millisecond {
			poll = tk
		}
	}
	if poll == nil {
		t.Fatalf("poll ticker not created")
	}
	clock.fire(t, poll)
	rec.next(t)
	if sess.Buffer.Len(1) != 1 {
		t.Fatalf("buffer did not receive the batch")
	}
	if _, ok := sess.Watermarks.Get(1); !ok {
		t.Fatalf("watermark missing")
	}
}

func TestSessionsRejectsDuplicateStart(t *testing.T) {
	m := newTestSessions(t, newFakeClock(t0))
	chart := lineChart()

	if _, err := m.Start(context.Background(), chart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(context.Background(), chart); !errors.Is(err, ErrSessionRunning) {
		t.Fatalf("err = %v, want ErrSessionRunning", err)
	}
	if ids := m.Running(); len(ids) != 1 || ids[0] != chart.ID {
		t.Fatalf("running = %v", ids)
	}
}

func TestSessionsStopUnknown(t *testing.T) {
	m := newTestSessions(t, newFakeClock(t0))
	if err := m.Stop(9); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if err := m.Subscribe(9, "x", newRecorder()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("subscribe err = %v", err)
	}
}

func TestSessionsStopThenRestart(t *testing.T) {
	m := newTestSessions(t, newFakeClock(t0))
	chart := models.Chart{ID: 4, Kind: models.ChartBar}

	first, err := m.Start(context.Background(), chart)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(chart.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := first.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if _, ok := m.Get(chart.ID); ok {
		t.Fatalf("session still registered")
	}

	second, err := m.Start(context.Background(), chart)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("restart reused session id")
	}
	if err := m.Subscribe(chart.ID, "late", newRecorder()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if second.Bus.Len() != 2 {
		t.Fatalf("bus len = %d", second.Bus.Len())
	}
}
