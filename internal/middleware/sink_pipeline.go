package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"SensorPull/internal/domain/models"
	domrepo "SensorPull/internal/domain/repository"
	applogger "SensorPull/pkg/logger"
)

// ErrBufferFull is returned by HandleBatch when the pipeline cannot queue another batch.
var ErrBufferFull = errors.New("sink pipeline: buffer full")

// SinkPipeline sits between a chart bus and a slow downstream sink (ClickHouse, Kafka).
// It validates batches, queues them without blocking the publisher, and writes them
// from a single worker with bounded retries.
type SinkPipeline struct {
	sink       domrepo.BatchSink
	metrics    domrepo.Metrics
	log        *applogger.Logger
	bufSize    int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	writeTTL   time.Duration

	bufCh   chan models.Batch
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	sleep   func(ctx context.Context, stop <-chan struct{}, d time.Duration) error
}

type PipelineOption func(*SinkPipeline)

// WithBufferSize sets how many batches may wait for the downstream sink.
func WithBufferSize(n int) PipelineOption {
	return func(p *SinkPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets retry attempts and the jittered exponential backoff bounds.
func WithRetry(max int, backoffMin, backoffMax time.Duration) PipelineOption {
	return func(p *SinkPipeline) {
		if max >= 0 {
			p.retryMax = max
		}
		if backoffMin > 0 {
			p.backoffMin = backoffMin
		}
		if backoffMax > 0 {
			p.backoffMax = backoffMax
		}
	}
}

// WithWriteTimeout bounds a single write attempt.
func WithWriteTimeout(d time.Duration) PipelineOption {
	return func(p *SinkPipeline) {
		if d > 0 {
			p.writeTTL = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *SinkPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewSinkPipeline creates a pipeline in front of sink.
func NewSinkPipeline(sink domrepo.BatchSink, metrics domrepo.Metrics, opts ...PipelineOption) *SinkPipeline {
	p := &SinkPipeline{
		sink:       sink,
		metrics:    metrics,
		log:        applogger.Nop(),
		bufSize:    256,
		retryMax:   3,
		backoffMin: 200 * time.Millisecond,
		backoffMax: 5 * time.Second,
		writeTTL:   10 * time.Second,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.Batch, p.bufSize)
	return p
}

// Name identifies the downstream sink.
func (p *SinkPipeline) Name() string { return p.sink.Name() }

// Start launches the background writer.
func (p *SinkPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop stops accepting work, drains what is already queued and waits for the writer
// until ctx expires.
func (p *SinkPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleBatch validates and queues a batch. It never waits on the downstream sink.
func (p *SinkPipeline) HandleBatch(_ context.Context, b models.Batch) error {
	if err := validateBatch(b); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if len(b.Samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("sink pipeline %s: not running", p.sink.Name())
	}
	select {
	case p.bufCh <- b:
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("%s: %w", p.sink.Name(), ErrBufferFull)
	}
}

// Depth returns the number of queued batches.
func (p *SinkPipeline) Depth() int { return len(p.bufCh) }

func (p *SinkPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case b := <-p.bufCh:
			p.deliver(ctx, b)
		case <-p.stopCh:
			// Backoff sleeps return immediately once stopCh is closed.
			for {
				select {
				case b := <-p.bufCh:
					p.deliver(ctx, b)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *SinkPipeline) deliver(ctx context.Context, b models.Batch) {
	for attempt := 0; ; attempt++ {
		err := p.write(ctx, b)
		if err == nil {
			return
		}
		if attempt >= p.retryMax || ctx.Err() != nil {
			p.metrics.RecordError("pipeline_drop")
			p.log.Error("sink write failed, batch dropped",
				applogger.String("sink", p.sink.Name()),
				applogger.Int64("source_id", b.Source.ID),
				applogger.Int("samples", len(b.Samples)),
				applogger.Int("attempts", attempt+1),
				applogger.Error(err),
			)
			return
		}
		p.metrics.RecordError("pipeline_retry")
		if err := p.sleep(ctx, p.stopCh, backoffWithJitter(p.backoffMin, p.backoffMax, attempt)); err != nil {
			p.metrics.RecordError("pipeline_drop")
			return
		}
	}
}

func (p *SinkPipeline) write(ctx context.Context, b models.Batch) error {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, p.writeTTL)
	defer cancel()
	if err := p.sink.WriteBatch(wctx, b); err != nil {
		return err
	}
	p.metrics.RecordLatency("sink_"+p.sink.Name(), time.Since(start).Seconds())
	return nil
}

func validateBatch(b models.Batch) error {
	if b.Source.ID <= 0 {
		return fmt.Errorf("batch without source")
	}
	for i, s := range b.Samples {
		if math.IsNaN(s.Y) || math.IsInf(s.Y, 0) {
			return fmt.Errorf("source %d sample %d: non-finite y", b.Source.ID, i)
		}
	}
	return nil
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := min << uint(attempt)
	if d <= 0 || d > max {
		d = max
	}
	// +/-10% jitter
	jitter := time.Duration(rand.Int63n(int64(d)/5+1)) - d/10
	if d+jitter < min {
		return min
	}
	return d + jitter
}

var errStopped = errors.New("sink pipeline: stopped")

func sleepCtx(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-stop:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pipelines is the set of sink pipelines attached to every chart session.
type Pipelines []*SinkPipeline
