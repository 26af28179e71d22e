package model

import (
	"fmt"
	"time"

	"github.com/thomjeff/run-density/internal/domain/pace"
)

// Event is one start wave of runners scoped to a single day.
type Event struct {
	Name        string
	Day         string
	StartMin    float64 // minutes from the day origin
	DurationMin float64 // cutoff, minutes after StartMin
	DistanceKM  float64 // course length; 0 leaves runners on course until the cutoff
	Runners     []Runner

	// Problems holds input errors found while building the event, such as an
	// unparsable start or an unusable pace. They fail the event's day only.
	Problems []error
}

// StartSec returns the gun time in seconds from the day origin.
func (e Event) StartSec() float64 { return e.StartMin * 60 }

// CutoffSec returns the cutoff in seconds from the day origin.
func (e Event) CutoffSec() float64 { return (e.StartMin + e.DurationMin) * 60 }

// Runner is a participant of exactly one event.
type Runner struct {
	Bib            string
	StartOffsetSec float64 // release delay after the event gun
	Pace           pace.Profile
}

// Trajectory anchors the runner's pace at its event's start and cutoff.
func (r Runner) Trajectory(e Event) pace.Trajectory {
	return pace.NewTrajectory(e.StartSec()+r.StartOffsetSec, e.CutoffSec(), e.DistanceKM, r.Pace)
}

// Resolution holds the discretisation parameters of a run.
type Resolution struct {
	SpatialStepKM    float64
	BucketSeconds    int
	SamplesPerBucket int // 0 derives the count from SpatialStepKM
}

// Validate checks the resolution is usable.
func (r Resolution) Validate() error {
	if !(r.SpatialStepKM > 0) {
		return fmt.Errorf("spatial step must be positive, got %v km", r.SpatialStepKM)
	}
	if r.BucketSeconds <= 0 {
		return fmt.Errorf("time window must be positive, got %d s", r.BucketSeconds)
	}
	if r.SamplesPerBucket < 0 {
		return fmt.Errorf("samples per bucket must not be negative, got %d", r.SamplesPerBucket)
	}
	return nil
}

// Clock renders seconds from the day origin as HH:MM:SS.
func Clock(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", int64(h), int64(m), int64(d/time.Second))
}
