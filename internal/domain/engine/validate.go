package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// validateEvents checks one day's events before any computation.
func (e *Engine) validateEvents(events []model.Event) error {
	const op = "engine.validate"
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errkind.Wrap(op, model.ErrValidation, fmt.Errorf(format, args...)))
	}

	names := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev.Name == "" {
			invalid("event without a name")
			continue
		}
		if _, dup := names[ev.Name]; dup {
			invalid("event %s: defined more than once", ev.Name)
			continue
		}
		names[ev.Name] = struct{}{}
		if len(ev.Problems) > 0 {
			errs = append(errs, ev.Problems...)
			continue
		}

		switch {
		case math.IsNaN(ev.StartMin) || ev.StartMin < e.startMin || ev.StartMin > e.startMax:
			invalid("event %s: start %v min outside [%v, %v]", ev.Name, ev.StartMin, e.startMin, e.startMax)
		case !(ev.DurationMin > 0) || ev.DurationMin > e.maxDuration:
			invalid("event %s: event_duration_minutes must be in (0, %v], got %v", ev.Name, e.maxDuration, ev.DurationMin)
		case ev.DistanceKM < 0 || math.IsNaN(ev.DistanceKM) || math.IsInf(ev.DistanceKM, 0):
			invalid("event %s: distance %v km", ev.Name, ev.DistanceKM)
		}

		bibs := make(map[string]struct{}, len(ev.Runners))
		for i, r := range ev.Runners {
			switch {
			case r.Bib == "":
				invalid("event %s: runner %d without a bib", ev.Name, i)
			case r.Pace.IsZero():
				invalid("event %s: runner %s without a pace", ev.Name, r.Bib)
			case r.StartOffsetSec < 0 || math.IsNaN(r.StartOffsetSec) || math.IsInf(r.StartOffsetSec, 0):
				invalid("event %s: runner %s start offset %v s", ev.Name, r.Bib, r.StartOffsetSec)
			}
			if _, dup := bibs[r.Bib]; dup && r.Bib != "" {
				invalid("event %s: bib %s appears more than once", ev.Name, r.Bib)
			}
			bibs[r.Bib] = struct{}{}
		}
	}
	return errors.Join(errs...)
}
