// Package kafka publishes JSON messages with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record to publish. Value is JSON-encoded unless it is []byte or string.
type Message struct {
	Key   []byte
	Value any
	Time  time.Time
}

// ProducerOption configures the underlying writer.
type ProducerOption func(*kafka.Writer) error

func WithBrokers(brokers []string) ProducerOption {
	return func(w *kafka.Writer) error {
		if len(brokers) == 0 {
			return errors.New("kafka: brokers are required")
		}
		w.Addr = kafka.TCP(brokers...)
		return nil
	}
}

// WithCompression accepts gzip, snappy, lz4 or zstd.
func WithCompression(name string) ProducerOption {
	return func(w *kafka.Writer) error {
		c, ok := compressions[name]
		if !ok {
			return fmt.Errorf("unknown compression %q", name)
		}
		w.Compression = c
		return nil
	}
}

// WithRequiredAcks sets acks: -1 all replicas, 0 none, 1 leader.
func WithRequiredAcks(acks int) ProducerOption {
	return func(w *kafka.Writer) error {
		w.RequiredAcks = kafka.RequiredAcks(acks)
		return nil
	}
}

func WithMaxAttempts(n int) ProducerOption {
	return func(w *kafka.Writer) error {
		w.MaxAttempts = n
		return nil
	}
}

// WithBatching flushes a partition batch at size messages, bytes or linger, whichever comes first.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(w *kafka.Writer) error {
		w.BatchSize = size
		w.BatchBytes = int64(bytes)
		w.BatchTimeout = linger
		return nil
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(w *kafka.Writer) error {
		w.WriteTimeout = write
		w.ReadTimeout = read
		return nil
	}
}

// WithAsync makes PublishBatch return before delivery; failures are only counted.
func WithAsync(async bool) ProducerOption {
	return func(w *kafka.Writer) error {
		w.Async = async
		return nil
	}
}

// WithKeyHashing routes equal keys to the same partition, which keeps per-source order.
func WithKeyHashing() ProducerOption {
	return func(w *kafka.Writer) error {
		w.Balancer = &kafka.Hash{}
		return nil
	}
}

var compressions = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Producer wraps a kafka.Writer shared by every topic it publishes to.
type Producer struct {
	writer *kafka.Writer
	m      *producerMetrics
}

// NewProducer builds a producer; WithBrokers is required.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	w := &kafka.Writer{
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.Addr == nil {
		return nil, errors.New("kafka: brokers are required")
	}

	p := &Producer{writer: w, m: defaultMetrics()}
	if w.Async {
		w.Completion = func(msgs []kafka.Message, err error) {
			if len(msgs) > 0 && err != nil {
				p.m.errors.WithLabelValues(msgs[0].Topic).Inc()
			}
		}
	}
	return p, nil
}

// PublishMessage publishes one unkeyed payload.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload any) error {
	return p.PublishBatch(ctx, topic, []Message{{Value: payload}})
}

// PublishBatch encodes and writes messages in one call. Nothing is written when
// any message fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		v, err := EncodeValue(m.Value)
		if err != nil {
			return err
		}
		ts := m.Time
		if ts.IsZero() {
			ts = start
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: ts}
		size += len(v)
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.m.observe(topic, len(out), size, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// EncodeValue passes bytes and strings through and JSON-encodes everything else.
func EncodeValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode value: %w", err)
	}
	return b, nil
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	errors   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *producerMetrics
)

func defaultMetrics() *producerMetrics {
	metricsOnce.Do(func() { metrics = newProducerMetrics(prometheus.DefaultRegisterer) })
	return metrics
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorpull_kafka_messages_total",
			Help: "Messages handed to Kafka by topic and result.",
		}, []string{"topic", "result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorpull_kafka_errors_total",
			Help: "Failed Kafka writes, async completions included.",
		}, []string{"topic"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorpull_kafka_bytes_total",
			Help: "Encoded payload bytes handed to Kafka.",
		}, []string{"topic"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensorpull_kafka_write_seconds",
			Help:    "WriteMessages latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic string, n, size int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.errors.WithLabelValues(topic).Inc()
	}
	m.messages.WithLabelValues(topic, result).Add(float64(n))
	m.bytes.WithLabelValues(topic).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
