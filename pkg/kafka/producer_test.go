package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
)

func TestEncodeValue(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{name: "bytes", value: []byte("raw"), want: "raw"},
		{name: "string", value: "text", want: "text"},
		{name: "struct", value: struct {
			Y float64 `json:"y"`
		}{Y: 1.5}, want: `{"y":1.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeValue(tc.value)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestEncodeValueRejectsUnmarshalable(t *testing.T) {
	if _, err := EncodeValue(make(chan int)); err == nil {
		t.Fatalf("expected error for channel value")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewProducer(WithBrokers(nil)); err == nil {
		t.Fatalf("expected error for empty broker list")
	}
}

func TestNewProducerAppliesOptions(t *testing.T) {
	p, err := NewProducer(
		WithBrokers([]string{"k1:9092", "k2:9092"}),
		WithCompression("zstd"),
		WithRequiredAcks(1),
		WithBatching(10, 2048, 50*time.Millisecond),
		WithKeyHashing(),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()

	w := p.writer
	if w.Compression != kafka.Zstd || w.RequiredAcks != kafka.RequireOne {
		t.Fatalf("compression/acks = %v/%v", w.Compression, w.RequiredAcks)
	}
	if w.BatchSize != 10 || w.BatchBytes != 2048 || w.BatchTimeout != 50*time.Millisecond {
		t.Fatalf("batching = %d/%d/%v", w.BatchSize, w.BatchBytes, w.BatchTimeout)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("balancer = %T", w.Balancer)
	}
}

func TestWithCompressionRejectsUnknown(t *testing.T) {
	if _, err := NewProducer(WithBrokers([]string{"k:9092"}), WithCompression("brotli")); err == nil {
		t.Fatalf("expected unknown compression error")
	}
}

func TestProducerMetricsObserve(t *testing.T) {
	m := newProducerMetrics(prometheus.NewRegistry())

	m.observe("samples", 3, 120, 10*time.Millisecond, nil)
	m.observe("samples", 2, 80, time.Millisecond, errors.New("broker down"))

	if got := testutil.ToFloat64(m.messages.WithLabelValues("samples", "ok")); got != 3 {
		t.Fatalf("ok messages = %v", got)
	}
	if got := testutil.ToFloat64(m.messages.WithLabelValues("samples", "error")); got != 2 {
		t.Fatalf("failed messages = %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("samples")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues("samples")); got != 200 {
		t.Fatalf("bytes = %v", got)
	}
}
