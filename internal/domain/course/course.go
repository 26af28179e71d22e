// Package course validates and indexes one day's course definition: its
// segments and the declared overlaps between events on them.
package course

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/errkind"
)

const chainageTolerance = 1e-9

// Course is an immutable, validated course graph for a single day.
type Course struct {
	day      string
	segments []model.Segment
	index    map[string]int
	overlaps map[string][]model.Overlap
	declared []model.Overlap
	disjoint []model.Overlap
	events   map[string]struct{}
}

// Load validates segments and overlap declarations against the day's event
// names. Every problem found is reported; each is classified as
// model.ErrSchema or model.ErrConfiguration.
func Load(day string, segments []model.Segment, overlaps []model.Overlap, events []string) (*Course, error) {
	const op = "course.load"
	c := &Course{
		day:      day,
		index:    make(map[string]int, len(segments)),
		overlaps: make(map[string][]model.Overlap),
		events:   make(map[string]struct{}, len(events)),
	}
	for _, e := range events {
		c.events[e] = struct{}{}
	}

	var errs []error
	schema := func(format string, args ...any) {
		errs = append(errs, errkind.Wrap(op, model.ErrSchema, fmt.Errorf(format, args...)))
	}
	config := func(format string, args ...any) {
		errs = append(errs, errkind.Wrap(op, model.ErrConfiguration, fmt.Errorf(format, args...)))
	}

	seen := make(map[string]struct{}, len(segments))
	for i, s := range segments {
		switch {
		case s.ID == "":
			schema("segment row %d: missing segment_id", i)
			continue
		case s.Direction == "":
			schema("segment %s: missing direction", s.ID)
			continue
		case s.Direction != model.DirectionUni && s.Direction != model.DirectionBi:
			schema("segment %s: unknown direction %q", s.ID, s.Direction)
			continue
		case anyNaN(s.FromKM, s.ToKM, s.WidthM):
			schema("segment %s: chainage and width must be numbers", s.ID)
			continue
		}
		if _, dup := seen[s.ID]; dup {
			config("segment %s: defined more than once", s.ID)
			continue
		}
		seen[s.ID] = struct{}{}
		if s.FromKM >= s.ToKM {
			config("segment %s: from_km %v must be below to_km %v", s.ID, s.FromKM, s.ToKM)
			continue
		}
		if s.WidthM <= 0 {
			config("segment %s: width_m %v must be positive", s.ID, s.WidthM)
			continue
		}
		c.segments = append(c.segments, s)
	}

	sort.SliceStable(c.segments, func(i, j int) bool {
		a, b := c.segments[i], c.segments[j]
		if a.FromKM != b.FromKM {
			return a.FromKM < b.FromKM
		}
		return a.ID < b.ID
	})
	for i, s := range c.segments {
		c.index[s.ID] = i
	}

	pairs := make(map[string]struct{}, len(overlaps))
	for i, o := range overlaps {
		seg, ok := c.Segment(o.SegmentID)
		if !ok {
			if _, invalid := seen[o.SegmentID]; invalid {
				// the segment row itself already failed validation
				continue
			}
			schema("overlap row %d: undefined segment %q", i, o.SegmentID)
			continue
		}
		if _, ok := c.events[o.EventA]; !ok {
			schema("overlap %s: undefined event %q on day %s", o.SegmentID, o.EventA, day)
			continue
		}
		if _, ok := c.events[o.EventB]; !ok {
			schema("overlap %s: undefined event %q on day %s", o.SegmentID, o.EventB, day)
			continue
		}
		if o.EventA == o.EventB {
			config("overlap %s: event %s paired with itself", o.SegmentID, o.EventA)
			continue
		}
		if anyNaN(o.FromKMA, o.ToKMA, o.FromKMB, o.ToKMB, o.WidthM) {
			schema("overlap %s %s/%s: chainage must be numbers", o.SegmentID, o.EventA, o.EventB)
			continue
		}
		if o.FromKMA >= o.ToKMA || o.FromKMB >= o.ToKMB {
			config("overlap %s %s/%s: inverted sub-range", o.SegmentID, o.EventA, o.EventB)
			continue
		}
		if !within(seg, o.FromKMA, o.ToKMA) || !within(seg, o.FromKMB, o.ToKMB) {
			config("overlap %s %s/%s: sub-range outside segment [%v, %v)", o.SegmentID, o.EventA, o.EventB, seg.FromKM, seg.ToKM)
			continue
		}
		if o.WidthM != 0 && math.Abs(o.WidthM-seg.WidthM) > chainageTolerance {
			config("overlap %s %s/%s: width_m %v contradicts segment width %v", o.SegmentID, o.EventA, o.EventB, o.WidthM, seg.WidthM)
			continue
		}
		key, rev := o.Pair(), o.SegmentID+"|"+o.EventB+"|"+o.EventA
		if _, dup := pairs[key]; dup {
			config("overlap %s %s/%s: declared more than once", o.SegmentID, o.EventA, o.EventB)
			continue
		}
		if _, dup := pairs[rev]; dup {
			config("overlap %s %s/%s: declared more than once", o.SegmentID, o.EventA, o.EventB)
			continue
		}
		pairs[key] = struct{}{}
		if o.Direction == "" {
			o.Direction = seg.Direction
		}
		if o.Label == "" {
			o.Label = seg.Label
		}
		if _, _, ok := o.Intersection(); !ok {
			c.disjoint = append(c.disjoint, o)
		}
		c.overlaps[o.SegmentID] = append(c.overlaps[o.SegmentID], o)
		c.declared = append(c.declared, o)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Day returns the day this course belongs to.
func (c *Course) Day() string { return c.day }

// Segments returns segments in ascending chainage, ties broken by id.
func (c *Course) Segments() []model.Segment { return c.segments }

// Segment looks a segment up by id.
func (c *Course) Segment(id string) (model.Segment, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Segment{}, false
	}
	return c.segments[i], true
}

// Index returns the position of segment id in Segments.
func (c *Course) Index(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Overlaps returns the declarations on segment id in declaration order.
func (c *Course) Overlaps(id string) []model.Overlap { return c.overlaps[id] }

// Declared returns every declaration, in input order.
func (c *Course) Declared() []model.Overlap { return c.declared }

// Disjoint returns declarations whose A and B sub-ranges never intersect;
// no overlap can be recorded for them.
func (c *Course) Disjoint() []model.Overlap { return c.disjoint }

// HasEvent reports whether name is an event of this day.
func (c *Course) HasEvent(name string) bool {
	_, ok := c.events[name]
	return ok
}

func within(s model.Segment, from, to float64) bool {
	return from >= s.FromKM-chainageTolerance && to <= s.ToKM+chainageTolerance
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
