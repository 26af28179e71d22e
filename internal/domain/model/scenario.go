package model

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sort"
	"strconv"
	"time"
)

// Scenario is the complete input of one analysis run.
type Scenario struct {
	Segments   []Segment
	Overlaps   []Overlap
	Events     []Event
	Resolution Resolution
}

// Days returns the distinct event days in ascending order.
func (s Scenario) Days() []string {
	seen := make(map[string]struct{}, 2)
	var days []string
	for _, e := range s.Events {
		if _, ok := seen[e.Day]; ok {
			continue
		}
		seen[e.Day] = struct{}{}
		days = append(days, e.Day)
	}
	sort.Strings(days)
	return days
}

// ForDay returns the part of the scenario visible to day: its events, the
// segments of that day plus day-agnostic ones, and overlap rows naming one
// of its events. Rows naming no known event at all are kept on every day so
// the course model can reject them.
func (s Scenario) ForDay(day string) Scenario {
	out := Scenario{Resolution: s.Resolution}
	eventDay := make(map[string]string, len(s.Events))
	for _, e := range s.Events {
		eventDay[e.Name] = e.Day
		if e.Day == day {
			out.Events = append(out.Events, e)
		}
	}
	for _, seg := range s.Segments {
		if seg.Day == "" || seg.Day == day {
			out.Segments = append(out.Segments, seg)
		}
	}
	for _, o := range s.Overlaps {
		dayA, knownA := eventDay[o.EventA]
		dayB, knownB := eventDay[o.EventB]
		if dayA == day || dayB == day || (!knownA && !knownB) {
			out.Overlaps = append(out.Overlaps, o)
		}
	}
	return out
}

// Fingerprint returns a stable sha256 over every field that influences the
// analysis result.
func (s Scenario) Fingerprint() string {
	h := sha256.New()
	w := fingerprintWriter{h: h}
	w.f(s.Resolution.SpatialStepKM)
	w.i(s.Resolution.BucketSeconds)
	w.i(s.Resolution.SamplesPerBucket)
	for _, seg := range s.Segments {
		w.s("seg", seg.ID, seg.Label, string(seg.Direction), seg.Day)
		w.f(seg.FromKM, seg.ToKM, seg.WidthM)
	}
	for _, o := range s.Overlaps {
		w.s("ovl", o.SegmentID, o.Label, o.EventA, o.EventB, string(o.Direction))
		w.f(o.FromKMA, o.ToKMA, o.FromKMB, o.ToKMB, o.WidthM)
	}
	for _, e := range s.Events {
		w.s("evt", e.Name, e.Day)
		w.f(e.StartMin, e.DurationMin, e.DistanceKM)
		for _, r := range e.Runners {
			w.s(r.Bib, r.Pace.String())
			w.f(r.StartOffsetSec)
		}
		for _, err := range e.Problems {
			w.s("bad", err.Error())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type fingerprintWriter struct{ h hash.Hash }

func (w fingerprintWriter) s(vals ...string) {
	for _, v := range vals {
		_, _ = io.WriteString(w.h, strconv.Quote(v))
	}
}

func (w fingerprintWriter) f(vals ...float64) {
	for _, v := range vals {
		_, _ = io.WriteString(w.h, strconv.FormatFloat(v, 'g', -1, 64)+";")
	}
}

func (w fingerprintWriter) i(v int) {
	_, _ = io.WriteString(w.h, strconv.Itoa(v)+";")
}

// Job is a queued analysis run.
type Job struct {
	RunID       string
	Fingerprint string
	Scenario    Scenario
	Submitted   time.Time
}
