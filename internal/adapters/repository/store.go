// Package repository defines the analysis run store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/thomjeff/run-density/internal/domain/engine"
)

// Status is the lifecycle state of a run.
type Status string

// Run states. A run moves queued -> running -> done|failed.
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Finished reports whether the run reached a terminal state.
func (s Status) Finished() bool { return s == StatusDone || s == StatusFailed }

// Run is a submitted analysis and, once finished, its outcome.
type Run struct {
	ID          string
	Fingerprint string
	Status      Status
	Submitted   time.Time
	Started     time.Time
	Finished    time.Time
	Result      *engine.Result
	Err         string
}

// Store provides read/write access to analysis runs.
type Store interface {
	// Create registers a queued run. Returns ErrExists for a duplicate id.
	Create(ctx context.Context, run Run) error
	// Start marks a queued run as running.
	Start(ctx context.Context, id string) error
	// Complete stores the result of a running run.
	Complete(ctx context.Context, id string, res *engine.Result) error
	// Fail records why a queued or running run did not complete.
	Fail(ctx context.Context, id string, cause error) error

	// Get returns a run by id. Returns ErrNotFound if the run is unknown.
	Get(ctx context.Context, id string) (Run, error)
	// List returns up to limit runs, most recently submitted first.
	List(ctx context.Context, limit int) ([]Run, error)
	// Count returns the number of runs held.
	Count(ctx context.Context) int
}
