// Package worker runs queued analysis jobs and records their outcome.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/thomjeff/run-density/internal/adapters/mq/queue"
	"github.com/thomjeff/run-density/internal/domain/engine"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/logger"
	"github.com/thomjeff/run-density/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Analyzer computes the result of a scenario.
type Analyzer interface {
	Run(ctx context.Context, sc model.Scenario) (*engine.Result, error)
}

// Recorder tracks run state transitions.
type Recorder interface {
	Start(ctx context.Context, runID string) error
	Complete(ctx context.Context, runID string, res *engine.Result) error
	Fail(ctx context.Context, runID string, cause error) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// FailureHook is told about every job that did not complete.
type FailureHook func(ctx context.Context, j Job, err error)

// InMemoryWorker consumes jobs from a queue one at a time.
type InMemoryWorker struct {
	queue     Queue
	analyzer  Analyzer
	recorder  Recorder
	name      string
	onFailure FailureHook
	active    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, analyzer Analyzer, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		analyzer: analyzer,
		recorder: recorder,
		name:     "worker",
		active:   new(atomic.Int64),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled, Shutdown is called or
// the queue is drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "analysis run failed", logger.String("run_id", j.RunID), logger.Error(err))
				if w.onFailure != nil {
					w.onFailure(ctx, j, err)
				}
			}
		}
	}
}

// Shutdown gracefully stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.recorder.Start(ctx, j.RunID); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("start run %s: %w", j.RunID, err)
	}
	w.logger.Debug(ctx, "analysis started",
		logger.String("run_id", j.RunID),
		logger.Duration("queued_for", start.Sub(j.Submitted)))

	res, err := w.analyzer.Run(ctx, j.Scenario)
	took := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "analysis_error")
		metrics.RecordRunCompleted("failed", took)
		if ferr := w.recorder.Fail(ctx, j.RunID, err); ferr != nil {
			w.logger.Error(ctx, "recording failure", logger.String("run_id", j.RunID), logger.Error(ferr))
		}
		return fmt.Errorf("analyse run %s: %w", j.RunID, err)
	}
	if err := w.recorder.Complete(ctx, j.RunID, res); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("complete run %s: %w", j.RunID, err)
	}
	metrics.RecordRunCompleted("done", took)
	w.logger.Info(ctx, "analysis finished",
		logger.String("run_id", j.RunID),
		logger.Int("days", len(res.Days)),
		logger.Int("failed_days", res.Failed()))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A non-positive workerCount uses one
// worker per CPU.
func NewPool(workerCount int, q Queue, analyzer Analyzer, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	active := new(atomic.Int64)
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, analyzer, recorder, wopts...)
		p.workers[i].active = active
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	return nil
}
