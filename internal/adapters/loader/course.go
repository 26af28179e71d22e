package loader

import (
	"errors"
	"io"
	"strings"

	"github.com/thomjeff/run-density/internal/domain/model"
)

// Segment table columns.
var segmentColumns = []string{"segment_id", "segment_label", "from_km", "to_km", "width_m", "direction"}

// Overlap table columns.
var overlapColumns = []string{"seg_id", "segment_label", "eventA", "eventB", "from_km_A", "to_km_A", "from_km_B", "to_km_B", "direction", "width_m"}

// ReadSegments parses a segment table. An optional day column scopes a row
// to one day.
func ReadSegments(r io.Reader, name string) ([]model.Segment, error) {
	t, err := readTable(r, name, segmentColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Segment, 0, len(t.rows))
	var errs []error
	for i, row := range t.rows {
		line := i + 2
		s := model.Segment{
			ID:        t.str(row, "segment_id"),
			Label:     t.str(row, "segment_label"),
			Direction: model.Direction(strings.ToLower(t.str(row, "direction"))),
			Day:       strings.ToLower(t.str(row, "day")),
		}
		var ferr error
		if s.FromKM, ferr = t.required(row, line, "from_km"); ferr != nil {
			errs = append(errs, ferr)
		}
		if s.ToKM, ferr = t.required(row, line, "to_km"); ferr != nil {
			errs = append(errs, ferr)
		}
		if s.WidthM, ferr = t.required(row, line, "width_m"); ferr != nil {
			errs = append(errs, ferr)
		}
		out = append(out, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadOverlaps parses an overlap declaration table. Empty direction or
// width cells defer to the segment.
func ReadOverlaps(r io.Reader, name string) ([]model.Overlap, error) {
	t, err := readTable(r, name, overlapColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Overlap, 0, len(t.rows))
	var errs []error
	for i, row := range t.rows {
		line := i + 2
		o := model.Overlap{
			SegmentID: t.str(row, "seg_id"),
			Label:     t.str(row, "segment_label"),
			EventA:    t.str(row, "eventA"),
			EventB:    t.str(row, "eventB"),
			Direction: model.Direction(strings.ToLower(t.str(row, "direction"))),
		}
		fields := []struct {
			col string
			dst *float64
		}{
			{"from_km_A", &o.FromKMA}, {"to_km_A", &o.ToKMA},
			{"from_km_B", &o.FromKMB}, {"to_km_B", &o.ToKMB},
		}
		for _, f := range fields {
			v, ferr := t.required(row, line, f.col)
			if ferr != nil {
				errs = append(errs, ferr)
			}
			*f.dst = v
		}
		var ferr error
		if o.WidthM, ferr = t.float(row, line, "width_m", 0); ferr != nil {
			errs = append(errs, ferr)
		}
		out = append(out, o)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
