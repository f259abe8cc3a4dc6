// Package pipeline hands fetched pages to downstream processing through a
// bounded buffer, applying backpressure to the fetch workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"corpuscrawler/internal/crawl"
)

// ErrStalled reports that the downstream consumer made no room within the
// stall grace period. Callers must treat it as fatal to the crawl run.
var ErrStalled = errors.New("pipeline stalled")

// Processor consumes one fetched page. Implementations own the artifact after
// Process returns nil.
type Processor interface {
	Process(ctx context.Context, artifact *crawl.PageArtifact) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, artifact *crawl.PageArtifact) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, artifact *crawl.PageArtifact) error {
	return f(ctx, artifact)
}

// Config bounds the dispatch buffer and the tolerance for a stalled consumer.
type Config struct {
	// BufferSize is the artifact channel capacity (default 64).
	BufferSize int
	// Consumers is the number of processing goroutines (default 1).
	Consumers int
	// StallGrace is how long Push blocks on a full buffer before reporting
	// ErrStalled (default 30s).
	StallGrace time.Duration
	// Logger receives processing failures.
	Logger *zap.Logger
}

const (
	defaultBufferSize = 64
	defaultConsumers  = 1
	defaultStallGrace = 30 * time.Second
)

// Dispatcher owns the handoff between fetch workers and page processing. A
// Push that cannot place its artifact within the stall grace period fails
// with ErrStalled instead of blocking the crawl forever.
type Dispatcher struct {
	cfg    Config
	proc   Processor
	ch     chan *crawl.PageArtifact
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
	processed atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher starts the consumer goroutines over proc.
func NewDispatcher(cfg Config, proc Processor) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Consumers <= 0 {
		cfg.Consumers = defaultConsumers
	}
	if cfg.StallGrace <= 0 {
		cfg.StallGrace = defaultStallGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		cfg:    cfg,
		proc:   proc,
		ch:     make(chan *crawl.PageArtifact, cfg.BufferSize),
		logger: logger,
	}
	for i := 0; i < cfg.Consumers; i++ {
		d.wg.Add(1)
		go d.consume()
	}
	return d
}

// Push transfers ownership of the artifact to the dispatcher. It blocks while
// the buffer is full, up to the stall grace period, and returns ErrStalled
// once the consumer is considered wedged.
func (d *Dispatcher) Push(ctx context.Context, artifact *crawl.PageArtifact) error {
	select {
	case d.ch <- artifact:
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.StallGrace)
	defer timer.Stop()
	select {
	case d.ch <- artifact:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline push: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: buffer full for %s", ErrStalled, d.cfg.StallGrace)
	}
}

// Close stops accepting artifacts and waits until the buffer drains. Safe to
// call more than once, but never concurrently with Push.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.ch)
	})
	d.wg.Wait()
}

// Processed reports how many artifacts were consumed successfully.
func (d *Dispatcher) Processed() int64 {
	return d.processed.Load()
}

// Failed reports how many artifacts the processor rejected.
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

func (d *Dispatcher) consume() {
	defer d.wg.Done()
	for artifact := range d.ch {
		if err := d.proc.Process(context.Background(), artifact); err != nil {
			d.failed.Add(1)
			d.logger.Warn("pipeline processing failed",
				zap.String("url", artifact.URL),
				zap.Error(err),
			)
			continue
		}
		d.processed.Add(1)
	}
}
