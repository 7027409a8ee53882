package usecase

import (
	"context"
	"errors"
	"testing"

	"SensorPull/internal/domain/models"
	"SensorPull/pkg/metrics"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(metrics.Noop{}, nil)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		bus.Subscribe(name, SubscriberFunc(func(context.Context, models.Batch) error {
			order = append(order, name)
			return nil
		}))
	}

	if failed := bus.Publish(context.Background(), models.Batch{}); failed != 0 {
		t.Fatalf("unexpected failures %d", failed)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus(metrics.Noop{}, nil)
	early, late := 0, 0
	bus.Subscribe("early", SubscriberFunc(func(context.Context, models.Batch) error { early++; return nil }))

	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), models.Batch{})
	}
	bus.Subscribe("late", SubscriberFunc(func(context.Context, models.Batch) error { late++; return nil }))
	bus.Publish(context.Background(), models.Batch{})

	if early != 4 || late != 1 {
		t.Fatalf("early=%d late=%d, want 4 and 1", early, late)
	}
}

func TestBusIsolatesFailingSubscribers(t *testing.T) {
	bus := NewBus(metrics.Noop{}, nil)
	reached := 0
	bus.Subscribe("error", SubscriberFunc(func(context.Context, models.Batch) error { return errors.New("boom") }))
	bus.Subscribe("panic", SubscriberFunc(func(context.Context, models.Batch) error { panic("kaboom") }))
	bus.Subscribe("ok", SubscriberFunc(func(context.Context, models.Batch) error { reached++; return nil }))

	if failed := bus.Publish(context.Background(), models.Batch{}); failed != 2 {
		t.Fatalf("failed = %d, want 2", failed)
	}
	if reached != 1 {
		t.Fatalf("subscriber after failures not reached")
	}
	if bus.Len() != 3 {
		t.Fatalf("len = %d", bus.Len())
	}
}
