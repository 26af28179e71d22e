package engine

import (
	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/internal/domain/zone"
	"github.com/thomjeff/run-density/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds sets the zone thresholds.
func WithThresholds(t zone.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithPeakBasis selects how segment peaks are measured.
func WithPeakBasis(b aggregate.Basis) Option {
	return func(e *Engine) {
		if b != "" {
			e.basis = b
		}
	}
}

// WithStackedRows adds combined rows to the grid.
func WithStackedRows(enabled bool) Option {
	return func(e *Engine) { e.stacked = enabled }
}

// WithSegmentConcurrency bounds how many segments of a day are filled at once.
func WithSegmentConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.segmentConcurrency = n
		}
	}
}

// WithDayConcurrency bounds how many days are analysed at once.
func WithDayConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.dayConcurrency = n
		}
	}
}

// WithStartWindow sets the accepted event start window in minutes from the
// day origin, inclusive.
func WithStartWindow(minMinutes, maxMinutes float64) Option {
	return func(e *Engine) {
		e.startMin = minMinutes
		e.startMax = maxMinutes
	}
}

// WithMaxDuration sets the longest accepted event_duration_minutes.
func WithMaxDuration(minutes float64) Option {
	return func(e *Engine) {
		if minutes != 0 {
			e.maxDuration = minutes
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
