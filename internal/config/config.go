// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and RUNDENSITY_ environment variables on top.
// - Validate before use; errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"math"
	"runtime"

	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/zone"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many scenario fingerprints are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// RunRetention caps how many runs the store keeps.
	RunRetention int `koanf:"run_retention"`

	// MaxListLimit caps GET /analyses?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// SpatialStepKM and TimeWindowSeconds are the default resolution for
	// submissions that do not carry their own.
	SpatialStepKM     float64 `koanf:"spatial_step_km"`
	TimeWindowSeconds int     `koanf:"time_window_seconds"`

	// SamplesPerBucket overrides the derived sample count when positive.
	SamplesPerBucket int `koanf:"samples_per_bucket"`

	// SegmentConcurrency bounds parallel segment fills within a day.
	SegmentConcurrency int `koanf:"segment_concurrency"`

	// Zone thresholds in runners per square metre.
	ZoneAmber   float64 `koanf:"zone_amber"`
	ZoneRed     float64 `koanf:"zone_red"`
	ZoneDarkRed float64 `koanf:"zone_dark_red"`

	// StackedDensity adds combined rows to the grid.
	StackedDensity bool `koanf:"stacked_density"`

	// PeakBasis is "stacked" or "per_event".
	PeakBasis string `koanf:"peak_basis"`

	// StartMinMinutes and StartMaxMinutes bound event start times.
	StartMinMinutes float64 `koanf:"start_min_minutes"`
	StartMaxMinutes float64 `koanf:"start_max_minutes"`

	// MaxEventDurationMinutes caps event_duration_minutes.
	MaxEventDurationMinutes float64 `koanf:"max_event_duration_minutes"`
}

// New creates a Config with defaults.
func New() *Config {
	t := zone.DefaultThresholds()
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         10_000,
		RunRetention:       1_000,
		MaxListLimit:       100,
		SpatialStepKM:      0.01,
		TimeWindowSeconds:  60,
		SegmentConcurrency: runtime.NumCPU(),
		ZoneAmber:          t.Amber,
		ZoneRed:            t.Red,
		ZoneDarkRed:        t.DarkRed,
		StackedDensity:     true,
		PeakBasis:          string(aggregate.BasisStacked),
		StartMinMinutes:    0,
		StartMaxMinutes:    24 * 60,

		MaxEventDurationMinutes: 48 * 60,
	}
}

// Thresholds returns the configured zone thresholds.
func (c *Config) Thresholds() zone.Thresholds {
	return zone.Thresholds{Amber: c.ZoneAmber, Red: c.ZoneRed, DarkRed: c.ZoneDarkRed}
}

// Resolution returns the default analysis resolution.
func (c *Config) Resolution() model.Resolution {
	return model.Resolution{
		SpatialStepKM:    c.SpatialStepKM,
		BucketSeconds:    c.TimeWindowSeconds,
		SamplesPerBucket: c.SamplesPerBucket,
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.RunRetention <= 0:
		return fmt.Errorf("%w: run_retention must be positive", ErrInvalidConfig)
	case c.MaxListLimit <= 0:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	case c.StartMinMinutes > c.StartMaxMinutes:
		return fmt.Errorf("%w: start_min_minutes above start_max_minutes", ErrInvalidConfig)
	case !(c.MaxEventDurationMinutes > 0) || math.IsInf(c.MaxEventDurationMinutes, 0):
		return fmt.Errorf("%w: max_event_duration_minutes must be positive and finite", ErrInvalidConfig)
	}
	if err := c.Resolution().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := aggregate.ParseBasis(c.PeakBasis); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
