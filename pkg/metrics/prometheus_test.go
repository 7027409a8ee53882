package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordBatchDelivered("7", 3)
	r.RecordBatchDelivered("7", 2)
	r.RecordError("fetch")

	if got := testutil.ToFloat64(r.batchesDelivered.WithLabelValues("7")); got != 2 {
		t.Fatalf("batches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.samplesDelivered.WithLabelValues("7")); got != 5 {
		t.Fatalf("samples = %v, want 5", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
}

func TestRecorderGauges(t *testing.T) {
	r := New(prometheus.NewRegistry())
	pos := time.Unix(1700000000, 500000000)

	r.RecordWatermark("1", pos)
	r.RecordLastValue("1", 42.5)

	if got := testutil.ToFloat64(r.watermark.WithLabelValues("1")); got != 1700000000.5 {
		t.Fatalf("watermark = %v", got)
	}
	if got := testutil.ToFloat64(r.lastValue.WithLabelValues("1")); got != 42.5 {
		t.Fatalf("last value = %v", got)
	}
}

func TestRecorderSeparateRegistries(t *testing.T) {
	// Each registry accepts its own collectors without duplicate registration panics.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
