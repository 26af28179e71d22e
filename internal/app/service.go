// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thomjeff/run-density/internal/adapters/mq/queue"
	workerpool "github.com/thomjeff/run-density/internal/adapters/mq/worker"
	"github.com/thomjeff/run-density/internal/adapters/repository"
	"github.com/thomjeff/run-density/internal/domain/dedupe"
	"github.com/thomjeff/run-density/internal/domain/engine"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/types"
	"github.com/thomjeff/run-density/pkg/errkind"
	"github.com/thomjeff/run-density/pkg/logger"
	"github.com/thomjeff/run-density/pkg/metrics"
)

// Service accepts analysis submissions, runs them in the background and
// serves their results.
type Service struct {
	mu sync.RWMutex

	// claimMu orders fingerprint claims with run creation.
	claimMu sync.Mutex

	store   *repository.MemoryStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *workerpool.Pool
	engine  *engine.Engine

	workerCount int
	queueSize   int
	dedupeSize  int
	retention   int
	resolution  model.Resolution
	engineOpts  []engine.Option

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1000,
		dedupeSize:  10000,
		retention:   1000,
		resolution:  model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	eng, err := engine.New(append(s.engineOpts, engine.WithLogger(s.logger.Named("engine")))...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	s.engine = eng
	s.store = repository.NewMemoryStore(ctx, repository.WithRetention(s.retention))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine, s.store,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithFailureHook(func(ctx context.Context, j workerpool.Job, _ error) {
			s.deduper.Unrecord(ctx, j.Fingerprint)
		}),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("retention", s.retention),
	)
	return nil
}

// Stop drains queued runs and shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping analysis service")

	err := s.pool.Shutdown(ctx)
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.started = false
	return err
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit queues sc for analysis and returns its run id. A scenario
// identical to one already held returns that run's id with duplicate set.
func (s *Service) Submit(ctx context.Context, sc model.Scenario) (runID string, duplicate bool, err error) {
	const op = "service.submit"
	if !s.running() {
		return "", false, ErrNotStarted
	}

	sc.Resolution = s.withDefaults(sc.Resolution)
	if err := sc.Resolution.Validate(); err != nil {
		return "", false, errkind.Wrap(op, model.ErrValidation, err)
	}
	if len(sc.Events) == 0 {
		return "", false, errkind.Wrap(op, model.ErrValidation, errors.New("scenario has no events"))
	}

	fp := sc.Fingerprint()
	now := time.Now()
	id, dup, err := s.claim(ctx, repository.Run{ID: uuid.NewString(), Fingerprint: fp, Submitted: now})
	if err != nil {
		return "", false, errkind.Op(op, err)
	}
	if dup {
		metrics.RecordRunDuplicate()
		s.logger.Debug(ctx, "duplicate scenario", logger.String("run_id", id), logger.String("fingerprint", fp))
		return id, true, nil
	}
	if err := s.queue.Enqueue(ctx, queue.Job{RunID: id, Fingerprint: fp, Scenario: sc, Submitted: now}); err != nil {
		s.deduper.Unrecord(ctx, fp)
		if ferr := s.store.Fail(ctx, id, err); ferr != nil {
			s.logger.Error(ctx, "failing unqueued run", logger.String("run_id", id), logger.Error(ferr))
		}
		return "", false, errkind.Op(op, err)
	}

	metrics.RecordRunSubmitted()
	s.logger.Info(ctx, "run submitted",
		logger.String("run_id", id),
		logger.Int("events", len(sc.Events)),
		logger.Int("segments", len(sc.Segments)))
	return id, false, nil
}

// claim records run's fingerprint and stores run, or returns the stored run
// already holding the fingerprint. A run is always stored before another
// submission can see its fingerprint.
func (s *Service) claim(ctx context.Context, run repository.Run) (string, bool, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	if existing, seen := s.deduper.SeenAndRecord(ctx, run.Fingerprint, run.ID); seen {
		if _, err := s.store.Get(ctx, existing); err == nil {
			return existing, true, nil
		}
		// the earlier run was evicted from the store
		s.deduper.Unrecord(ctx, run.Fingerprint)
		s.deduper.SeenAndRecord(ctx, run.Fingerprint, run.ID)
	}
	if err := s.store.Create(ctx, run); err != nil {
		s.deduper.Unrecord(ctx, run.Fingerprint)
		return "", false, err
	}
	return run.ID, false, nil
}

func (s *Service) withDefaults(r model.Resolution) model.Resolution {
	if r.SpatialStepKM == 0 {
		r.SpatialStepKM = s.resolution.SpatialStepKM
	}
	if r.BucketSeconds == 0 {
		r.BucketSeconds = s.resolution.BucketSeconds
	}
	if r.SamplesPerBucket == 0 {
		r.SamplesPerBucket = s.resolution.SamplesPerBucket
	}
	return r
}

// Run returns a run by id.
func (s *Service) Run(ctx context.Context, id string) (repository.Run, error) {
	if !s.running() {
		return repository.Run{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Runs lists up to limit runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]types.RunEntry, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.RunEntry, len(runs))
	for i := range runs {
		out[i] = Entry(&runs[i])
	}
	return out, nil
}

// Grid writes the density grid of one day of a finished run as CSV.
func (s *Service) Grid(ctx context.Context, id, day string, w io.Writer) error {
	run, err := s.Run(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != repository.StatusDone || run.Result == nil {
		return fmt.Errorf("run %s is %s: %w", id, run.Status, ErrNotReady)
	}
	dr, ok := run.Result.Day(day)
	if !ok {
		return fmt.Errorf("run %s, day %q: %w", id, day, ErrUnknownDay)
	}
	if dr.Err != nil {
		return dr.Err
	}
	return dr.Report.Grid.WriteCSV(w)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Stats{}
	}
	st := types.Stats{
		Runs:          s.store.Count(ctx),
		QueueDepth:    s.queue.Len(ctx),
		QueueCapacity: s.queue.Cap(),
		Workers:       s.pool.Size(),
		DedupeEntries: int(s.deduper.Size()),
	}
	metrics.UpdateQueueSize(st.QueueDepth)
	metrics.UpdateRunsStored(st.Runs)
	return st
}

// Entry converts a stored run into its listing shape.
func Entry(run *repository.Run) types.RunEntry {
	e := types.RunEntry{
		ID:          run.ID,
		Fingerprint: run.Fingerprint,
		Status:      string(run.Status),
		Submitted:   run.Submitted,
		Error:       run.Err,
	}
	if !run.Started.IsZero() {
		t := run.Started
		e.Started = &t
	}
	if !run.Finished.IsZero() {
		t := run.Finished
		e.Finished = &t
	}
	if run.Result != nil {
		for _, d := range run.Result.Days {
			de := types.DayEntry{Day: d.Day}
			if d.Report != nil {
				de.Segments = len(d.Report.Summaries)
				de.Overlaps = len(d.Report.Overlaps)
			}
			if d.Err != nil {
				de.Error = d.Message()
			}
			e.Days = append(e.Days, de)
		}
	}
	return e
}
