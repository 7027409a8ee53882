package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewWithWriterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(Int64("chart_id", 3))

	l.Info("tick", Float64("y", 1.5), String("source", "7"), Error(errors.New("boom")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if entry["message"] != "tick" || entry["source"] != "7" || entry["y"] != 1.5 {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["chart_id"] != float64(3) || entry["error"] != "boom" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogDigest
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogDigest))
	if len(p.batches) == 1 {
		close(p.done)
	}
	return nil
}

func TestCollectorAggregatesAndFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
		Source:         "test",
		IncludeWarn:    true,
	})
	defer l.RemoveCollector()

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", Int64("source_id", 1))
	}
	l.Error("subscriber failed", Int64("source_id", 1))

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not flush")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "logs" || len(pub.batches) != 1 {
		t.Fatalf("unexpected publish topic=%s batches=%d", pub.topic, len(pub.batches))
	}
	d := pub.batches[0]
	if d.Source != "test" || d.Entries[0].Message != "fetch failed" {
		t.Fatalf("digest not ordered by count: %+v", d)
	}
	counts := map[string]int{}
	for _, e := range d.Entries {
		counts[e.Message] = e.Count
	}
	if counts["fetch failed"] != 3 || counts["subscriber failed"] != 1 {
		t.Fatalf("unexpected aggregation %v", counts)
	}
}

func TestChildLoggersShareCollector(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	root := Nop()
	child := root.With(String("component", "scheduler"))

	root.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 1,
		Topic:          "logs",
		Publisher:      pub,
	})
	child.Error("fetch failed")

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("child entry was not collected")
	}

	root.RemoveCollector()
	child.Error("after removal")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, d := range pub.batches {
		for _, e := range d.Entries {
			if e.Message == "after removal" {
				t.Fatalf("detached collector still received entries")
			}
		}
	}
}

func TestWarnCollectedOnlyWhenIncluded(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})
	l.Warn("slow fetch", Duration("took", 1500*time.Millisecond))
	l.RemoveCollector() // final flush

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 0 {
		t.Fatalf("warn collected without IncludeWarn: %+v", pub.batches)
	}
}
