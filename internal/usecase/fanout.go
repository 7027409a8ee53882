package usecase

import (
	"context"
	"fmt"
	"sync"

	"SensorPull/internal/domain/models"
	drepo "SensorPull/internal/domain/repository"
	applogger "SensorPull/pkg/logger"
)

// Subscriber receives every batch published on a bus after it subscribed.
type Subscriber interface {
	HandleBatch(ctx context.Context, b models.Batch) error
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(ctx context.Context, b models.Batch) error

func (f SubscriberFunc) HandleBatch(ctx context.Context, b models.Batch) error { return f(ctx, b) }

type namedSubscriber struct {
	name string
	sub  Subscriber
}

// Bus delivers each published batch to all current subscribers, synchronously and
// in subscription order. A bus belongs to one chart session; subscribers are never removed.
type Bus struct {
	mu      sync.RWMutex
	subs    []namedSubscriber
	metrics drepo.Metrics
	log     *applogger.Logger
}

// NewBus creates an empty bus.
func NewBus(metrics drepo.Metrics, log *applogger.Logger) *Bus {
	if log == nil {
		log = applogger.Nop()
	}
	return &Bus{metrics: metrics, log: log}
}

// Subscribe appends sub. It only sees batches published from now on.
func (b *Bus) Subscribe(name string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, namedSubscriber{name: name, sub: sub})
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish invokes every subscriber with batch and returns the number that failed.
// Failures and panics are contained per subscriber.
func (b *Bus) Publish(ctx context.Context, batch models.Batch) int {
	b.mu.RLock()
	subs := make([]namedSubscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := b.deliver(ctx, s, batch); err != nil {
			failed++
			b.metrics.RecordError("subscriber")
			b.log.Warn("subscriber failed",
				applogger.String("subscriber", s.name),
				applogger.Int64("chart_id", batch.ChartID),
				applogger.Int64("source_id", batch.Source.ID),
				applogger.Error(err),
			)
		}
	}
	return failed
}

func (b *Bus) deliver(ctx context.Context, s namedSubscriber, batch models.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sub.HandleBatch(ctx, batch)
}
