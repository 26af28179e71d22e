package loader

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// Runner table columns. start_offset, splits and event are optional.
var runnerColumns = []string{"runner_id", "pace"}

// ReadRunners parses a runner table. pace is in minutes per kilometre;
// start_offset in seconds after the gun; splits, when present, replaces the
// flat pace with per-band paces written "from-to:pace;...". When the table
// has an event column only rows naming event are kept.
func ReadRunners(r io.Reader, name, event string) ([]model.Runner, error) {
	const op = "loader.runners"
	t, err := readTable(r, name, runnerColumns...)
	if err != nil {
		return nil, err
	}
	filter := t.has("event")
	out := make([]model.Runner, 0, len(t.rows))
	var errs []error
	for i, row := range t.rows {
		line := i + 2
		if filter && !strings.EqualFold(t.str(row, "event"), event) {
			continue
		}
		rn := model.Runner{Bib: t.str(row, "runner_id")}
		offset, err := t.float(row, line, "start_offset", 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rn.StartOffsetSec = offset

		if splits := t.str(row, "splits"); splits != "" {
			bands, err := ParseSplits(splits)
			if err != nil {
				errs = append(errs, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s line %d: %w", name, line, err)))
				continue
			}
			rn.Pace, err = pace.Splits(bands)
			if err != nil {
				errs = append(errs, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s line %d: %w", name, line, err)))
				continue
			}
		} else {
			minPerKM, err := t.required(row, line, "pace")
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rn.Pace, err = pace.Constant(minPerKM)
			if err != nil {
				errs = append(errs, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("%s line %d: %w", name, line, err)))
				continue
			}
		}
		out = append(out, rn)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseSplits reads "0-5:4.5;5-10:4.8" into chainage bands.
func ParseSplits(s string) ([]pace.Band, error) {
	var bands []pace.Band
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rng, p, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("split %q: want from-to:pace", part)
		}
		from, to, ok := strings.Cut(rng, "-")
		if !ok {
			return nil, fmt.Errorf("split %q: want from-to:pace", part)
		}
		var b pace.Band
		var err error
		if b.FromKM, err = strconv.ParseFloat(strings.TrimSpace(from), 64); err != nil {
			return nil, fmt.Errorf("split %q: %w", part, err)
		}
		if b.ToKM, err = strconv.ParseFloat(strings.TrimSpace(to), 64); err != nil {
			return nil, fmt.Errorf("split %q: %w", part, err)
		}
		if b.MinPerKM, err = strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return nil, fmt.Errorf("split %q: %w", part, err)
		}
		bands = append(bands, b)
	}
	if len(bands) == 0 {
		return nil, errors.New("no splits")
	}
	return bands, nil
}
