// Package aggregate folds a day's per-bucket density into segment summaries,
// overlap records and the binned grid artifact.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/thomjeff/run-density/internal/domain/density"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/overlap"
	"github.com/thomjeff/run-density/internal/domain/zone"
)

// Basis selects how a segment's peak density is measured.
type Basis string

const (
	// BasisStacked sums every occupying event's count per bucket.
	BasisStacked Basis = "stacked"
	// BasisPerEvent takes the densest single event per bucket.
	BasisPerEvent Basis = "per_event"
)

// ParseBasis accepts "stacked" or "per_event"; empty means stacked.
func ParseBasis(s string) (Basis, error) {
	switch b := Basis(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BasisStacked:
		return BasisStacked, nil
	case BasisPerEvent:
		return BasisPerEvent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBasis, s)
	}
}

// Options tunes aggregation.
type Options struct {
	Basis Basis
	// Stacked adds a combined "*" row per segment and bucket to the grid.
	Stacked bool
}

// EventTotal is one event's footprint on a segment.
type EventTotal struct {
	Event       string  `json:"event"`
	Runners     int     `json:"runners"`
	PeakBucket  int     `json:"peak_bucket"`
	PeakCount   int     `json:"peak_count"`
	PeakDensity float64 `json:"peak_density"`
}

// Summary is the per-segment aggregate of a day.
type Summary struct {
	SegmentID   string          `json:"segment_id"`
	Label       string          `json:"segment_label,omitempty"`
	FromKM      float64         `json:"from_km"`
	ToKM        float64         `json:"to_km"`
	WidthM      float64         `json:"width_m"`
	Direction   model.Direction `json:"direction"`
	Basis       Basis           `json:"basis"`
	PeakBucket  int             `json:"peak_bucket"`
	PeakSec     float64         `json:"peak_sec"`
	PeakClock   string          `json:"peak_clock,omitempty"`
	PeakCount   int             `json:"peak_count"`
	PeakDensity float64         `json:"peak_density"`
	PeakZone    zone.Zone       `json:"peak_zone"`
	Events      []EventTotal    `json:"events"`
}

// Report is everything produced for one day.
type Report struct {
	Day           string           `json:"day"`
	OriginSec     float64          `json:"origin_sec"`
	BucketSeconds int              `json:"bucket_seconds"`
	Buckets       int              `json:"buckets"`
	Events        []string         `json:"events"`
	Summaries     []Summary        `json:"summaries"`
	Overlaps      []overlap.Record `json:"overlaps"`
	Grid          *Grid            `json:"-"`
}

// Build assembles the day's report. Summaries follow segment chainage order;
// overlap records keep the detector's order.
func Build(day string, res *density.Result, recs []overlap.Record, classifier *zone.Classifier, opts Options) (*Report, error) {
	if opts.Basis == "" {
		opts.Basis = BasisStacked
	}
	if opts.Basis != BasisStacked && opts.Basis != BasisPerEvent {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBasis, opts.Basis)
	}
	tl := res.Timeline
	rep := &Report{
		Day:           day,
		OriginSec:     tl.OriginSec,
		BucketSeconds: int(tl.BucketSec),
		Buckets:       tl.Buckets,
		Events:        res.Events,
		Summaries:     make([]Summary, len(res.Segments)),
		Overlaps:      recs,
	}
	if rep.Overlaps == nil {
		rep.Overlaps = []overlap.Record{}
	}

	for s, seg := range res.Segments {
		sum, err := summarize(s, seg, res, classifier, opts.Basis)
		if err != nil {
			return nil, err
		}
		rep.Summaries[s] = sum
	}

	grid, err := buildGrid(day, res, classifier, opts.Stacked)
	if err != nil {
		return nil, err
	}
	rep.Grid = grid
	return rep, nil
}

func summarize(s int, seg model.Segment, res *density.Result, classifier *zone.Classifier, basis Basis) (Summary, error) {
	tl := res.Timeline
	sum := Summary{
		SegmentID:  seg.ID,
		Label:      seg.Label,
		FromKM:     seg.FromKM,
		ToKM:       seg.ToKM,
		WidthM:     seg.WidthM,
		Direction:  seg.Direction,
		Basis:      basis,
		PeakBucket: -1,
		Events:     make([]EventTotal, len(res.Events)),
	}
	for e, name := range res.Events {
		sum.Events[e] = EventTotal{Event: name, Runners: res.Total(s, e), PeakBucket: -1}
	}

	for b := 0; b < tl.Buckets; b++ {
		count := 0
		for e := range res.Events {
			c := res.Count(s, b, e)
			if et := &sum.Events[e]; c > et.PeakCount {
				et.PeakCount = c
				et.PeakBucket = b
				et.PeakDensity = res.Density(s, b, e)
			}
			if basis == BasisStacked {
				count += c
			} else {
				count = max(count, c)
			}
		}
		if count > sum.PeakCount {
			sum.PeakCount = count
			sum.PeakBucket = b
		}
	}

	if sum.PeakBucket >= 0 {
		sum.PeakSec = tl.BucketStart(sum.PeakBucket)
		sum.PeakClock = model.Clock(sum.PeakSec)
		sum.PeakDensity = float64(sum.PeakCount) / seg.AreaM2()
	}
	z, err := classifier.Classify(sum.PeakDensity)
	if err != nil {
		return sum, err
	}
	sum.PeakZone = z
	return sum, nil
}
