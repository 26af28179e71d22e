package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thomjeff/run-density/internal/domain/engine"
	"github.com/thomjeff/run-density/pkg/metrics"
)

const (
	defaultRetention             = 1000
	defaultMetricsUpdateInterval = 5 * time.Second
)

// MemoryStore is an in-memory Store. Runs are kept in submission order.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Run
	order []string

	retention             int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts its metrics updater, which
// stops when ctx is canceled or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]*Run),
		retention:             defaultRetention,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops background goroutines.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Create registers a queued run.
func (s *MemoryStore) Create(ctx context.Context, run Run) error { //nolint:gocritic // hugeParam: Run is copied into the store
	s.mu.Lock()
	if _, ok := s.byID[run.ID]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "exists")
		return fmt.Errorf("create %s: %w", run.ID, ErrExists)
	}
	if run.Status == "" {
		run.Status = StatusQueued
	}
	if run.Submitted.IsZero() {
		run.Submitted = time.Now()
	}
	s.byID[run.ID] = &run
	s.order = append(s.order, run.ID)
	s.evictLocked()
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRunsStored(n)
	return nil
}

// Start marks a queued run as running.
func (s *MemoryStore) Start(ctx context.Context, id string) error {
	return s.transition(id, func(r *Run) error {
		if r.Status != StatusQueued {
			return fmt.Errorf("start %s from %s: %w", id, r.Status, ErrInvalidTransition)
		}
		r.Status = StatusRunning
		r.Started = time.Now()
		return nil
	})
}

// Complete stores the result of a running run.
func (s *MemoryStore) Complete(ctx context.Context, id string, res *engine.Result) error {
	return s.transition(id, func(r *Run) error {
		if r.Status != StatusRunning {
			return fmt.Errorf("complete %s from %s: %w", id, r.Status, ErrInvalidTransition)
		}
		r.Status = StatusDone
		r.Finished = time.Now()
		r.Result = res
		return nil
	})
}

// Fail records why a queued or running run did not complete.
func (s *MemoryStore) Fail(ctx context.Context, id string, cause error) error {
	return s.transition(id, func(r *Run) error {
		if r.Status.Finished() {
			return fmt.Errorf("fail %s from %s: %w", id, r.Status, ErrInvalidTransition)
		}
		r.Status = StatusFailed
		r.Finished = time.Now()
		if cause != nil {
			r.Err = cause.Error()
		}
		return nil
	})
}

func (s *MemoryStore) transition(id string, fn func(*Run) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err := fn(r); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_transition")
		return err
	}
	return nil
}

// Get returns a copy of the run.
func (s *MemoryStore) Get(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return *r, nil
}

// List returns up to limit runs, most recently submitted first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.byID[s.order[i]])
	}
	return out, nil
}

// Count returns the number of runs held.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// evictLocked drops the oldest finished runs until the store is within
// retention. Callers hold s.mu.
func (s *MemoryStore) evictLocked() {
	excess := len(s.byID) - s.retention
	if excess <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.byID[id].Status.Finished() {
			delete(s.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRunsStored(s.Count(ctx))
			}
		}
	}()
}
