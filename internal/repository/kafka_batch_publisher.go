package repository

import (
	"context"
	"strconv"

	"SensorPull/internal/domain/models"
	"SensorPull/internal/domain/repository"
	pkgkafka "SensorPull/pkg/kafka"
)

// batchWriter is the part of pkg/kafka.Producer the publisher needs.
type batchWriter interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaBatchPublisher publishes every sample of a batch as one message keyed by source id,
// so per-source order is kept within a partition.
type KafkaBatchPublisher struct {
	producer batchWriter
	topic    string
}

// NewKafkaBatchPublisher creates a Kafka sink.
func NewKafkaBatchPublisher(producer batchWriter, topic string) *KafkaBatchPublisher {
	return &KafkaBatchPublisher{producer: producer, topic: topic}
}

var _ repository.BatchSink = (*KafkaBatchPublisher)(nil)

// SampleMessage is the payload of one published sample.
type SampleMessage struct {
	ChartID   int64   `json:"chart_id"`
	SourceID  int64   `json:"source_id"`
	T         *int64  `json:"t,omitempty"`
	Key       string  `json:"key,omitempty"`
	Y         float64 `json:"y"`
	FetchedAt int64   `json:"fetched_at"`
}

func (p *KafkaBatchPublisher) Name() string { return "kafka" }

func (p *KafkaBatchPublisher) WriteBatch(ctx context.Context, b models.Batch) error {
	if len(b.Samples) == 0 {
		return nil
	}
	key := []byte(strconv.FormatInt(b.Source.ID, 10))
	msgs := make([]pkgkafka.Message, len(b.Samples))
	for i, s := range b.Samples {
		m := SampleMessage{
			ChartID:   b.ChartID,
			SourceID:  b.Source.ID,
			Key:       s.Key,
			Y:         s.Y,
			FetchedAt: b.FetchedAt.UnixMilli(),
		}
		if !s.Time.IsZero() {
			ms := s.Time.UnixMilli()
			m.T = &ms
		}
		msgs[i] = pkgkafka.Message{Key: key, Value: m, Time: b.FetchedAt}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed by the app.
func (p *KafkaBatchPublisher) Close() error {
	return nil
}
