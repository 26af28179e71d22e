package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// Manifest describes a run: its resolution, the shared course tables and
// each event with its runner table. Paths are relative to the manifest.
type Manifest struct {
	Resolution struct {
		SpatialStepKM     float64 `koanf:"spatial_step_km"`
		TimeWindowSeconds int     `koanf:"time_window_seconds"`
		SamplesPerBucket  int     `koanf:"samples_per_bucket"`
	} `koanf:"resolution"`
	Segments string          `koanf:"segments"`
	Overlaps string          `koanf:"overlaps"`
	Events   []ManifestEvent `koanf:"events"`
}

// ManifestEvent is one event entry of a manifest.
type ManifestEvent struct {
	Name string `koanf:"name"`
	Day  string `koanf:"day"`
	// StartTime is minutes from the day origin, or a "HH:MM" clock.
	StartTime   string  `koanf:"start_time"`
	DurationMin float64 `koanf:"event_duration_minutes"`
	DistanceKM  float64 `koanf:"distance_km"`
	Runners     string  `koanf:"runners"`
}

// ReadManifest parses a YAML manifest file.
func ReadManifest(path string) (*Manifest, error) {
	const op = "loader.manifest"
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: %w", path, err))
	}
	var m Manifest
	if err := k.UnmarshalWithConf("", &m, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: %w", path, err))
	}
	switch {
	case m.Segments == "":
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: segments table not set", path))
	case len(m.Events) == 0:
		return nil, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s: no events", path))
	}
	return &m, nil
}

// Load reads the manifest at path and every table it references into a
// scenario. Resolution fields left unset in the manifest are taken from def.
// A bad start time or runner table is recorded on its event's Problems
// rather than failing the load.
func Load(ctx context.Context, path string, def model.Resolution) (model.Scenario, error) {
	const op = "loader.load"
	m, err := ReadManifest(path)
	if err != nil {
		return model.Scenario{}, err
	}
	base := filepath.Dir(path)
	rel := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	sc := model.Scenario{Resolution: def}
	if m.Resolution.SpatialStepKM != 0 {
		sc.Resolution.SpatialStepKM = m.Resolution.SpatialStepKM
	}
	if m.Resolution.TimeWindowSeconds != 0 {
		sc.Resolution.BucketSeconds = m.Resolution.TimeWindowSeconds
	}
	if m.Resolution.SamplesPerBucket != 0 {
		sc.Resolution.SamplesPerBucket = m.Resolution.SamplesPerBucket
	}

	if err := readFile(rel(m.Segments), func(f *os.File) error {
		sc.Segments, err = ReadSegments(f, m.Segments)
		return err
	}); err != nil {
		return model.Scenario{}, err
	}
	if m.Overlaps != "" {
		if err := readFile(rel(m.Overlaps), func(f *os.File) error {
			sc.Overlaps, err = ReadOverlaps(f, m.Overlaps)
			return err
		}); err != nil {
			return model.Scenario{}, err
		}
	}

	for _, me := range m.Events {
		if err := ctx.Err(); err != nil {
			return model.Scenario{}, errkind.Op(op, err)
		}
		ev := model.Event{
			Name:        me.Name,
			Day:         strings.ToLower(me.Day),
			DurationMin: me.DurationMin,
			DistanceKM:  me.DistanceKM,
		}
		// event-level problems stay on the event so only its day fails
		start, err := ParseStart(me.StartTime)
		if err != nil {
			ev.Problems = append(ev.Problems, errkind.Wrap(op, model.ErrValidation, fmt.Errorf("event %s: %w", me.Name, err)))
		}
		ev.StartMin = start
		if me.Runners != "" {
			if err := readFile(rel(me.Runners), func(f *os.File) error {
				ev.Runners, err = ReadRunners(f, me.Runners, me.Name)
				return err
			}); err != nil {
				ev.Problems = append(ev.Problems, err)
			}
		}
		sc.Events = append(sc.Events, ev)
	}
	return sc, nil
}

// ParseStart accepts minutes from the day origin ("420", "420.5") or a
// clock ("07:00").
func ParseStart(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("start_time is required")
	}
	if h, m, ok := strings.Cut(s, ":"); ok {
		hh, err := strconv.Atoi(h)
		if err != nil {
			return 0, fmt.Errorf("start_time %q: %w", s, err)
		}
		mm, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, fmt.Errorf("start_time %q: %w", s, err)
		}
		return float64(hh)*60 + mm, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("start_time %q: %w", s, err)
	}
	return v, nil
}

func readFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errkind.Wrap("loader.open", model.ErrSchema, err)
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}
