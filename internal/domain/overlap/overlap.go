// Package overlap finds when and where runners of two declared events share
// a segment.
package overlap

import (
	"context"
	"fmt"
	"sort"

	"github.com/thomjeff/run-density/internal/domain/course"
	"github.com/thomjeff/run-density/internal/domain/density"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/zone"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// Record describes one declared event pair on one segment.
type Record struct {
	SegmentID string          `json:"segment_id"`
	Label     string          `json:"segment_label,omitempty"`
	EventA    string          `json:"event_a"`
	EventB    string          `json:"event_b"`
	Direction model.Direction `json:"direction"`
	FromKMA   float64         `json:"from_km_a"`
	ToKMA     float64         `json:"to_km_a"`
	FromKMB   float64         `json:"from_km_b"`
	ToKMB     float64         `json:"to_km_b"`

	// Disjoint marks sub-ranges that never intersect; no occurrence is
	// recorded for them.
	Disjoint bool `json:"disjoint,omitempty"`
	Found    bool `json:"found"`

	FirstBucket int      `json:"first_bucket"`
	FirstSec    float64  `json:"first_sec"`
	FirstClock  string   `json:"first_clock,omitempty"`
	ChainageKM  float64  `json:"chainage_km"`
	BibsA       []string `json:"bibs_a,omitempty"`
	BibsB       []string `json:"bibs_b,omitempty"`

	PeakBucket  int       `json:"peak_bucket"`
	PeakSec     float64   `json:"peak_sec"`
	PeakCountA  int       `json:"peak_count_a"`
	PeakCountB  int       `json:"peak_count_b"`
	PeakDensity float64   `json:"peak_density"`
	PeakZone    zone.Zone `json:"peak_zone"`

	// Buckets counts the buckets in which both events were present.
	Buckets int `json:"overlap_buckets"`
}

// Detector evaluates declared overlaps against a day's density result.
type Detector struct {
	classifier *zone.Classifier
}

// NewDetector builds a Detector that labels peaks with classifier.
func NewDetector(classifier *zone.Classifier) *Detector {
	return &Detector{classifier: classifier}
}

// Detect returns one record per declared pair, in segment chainage order and
// declaration order within a segment.
func (d *Detector) Detect(ctx context.Context, crs *course.Course, pop *density.Population, res *density.Result) ([]Record, error) {
	const op = "overlap.detect"
	var out []Record
	for s, seg := range res.Segments {
		if err := ctx.Err(); err != nil {
			return nil, errkind.Op(op, err)
		}
		for _, o := range crs.Overlaps(seg.ID) {
			rec, err := d.pair(s, seg, o, pop, res)
			if err != nil {
				return nil, errkind.Op(op, err)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// occupant is a runner present in an event's sub-range over a bucket span.
type occupant struct {
	bib  string
	span density.Span
}

func (d *Detector) pair(s int, seg model.Segment, o model.Overlap, pop *density.Population, res *density.Result) (Record, error) {
	rec := Record{
		SegmentID:   seg.ID,
		Label:       o.Label,
		EventA:      o.EventA,
		EventB:      o.EventB,
		Direction:   o.Direction,
		FromKMA:     o.FromKMA,
		ToKMA:       o.ToKMA,
		FromKMB:     o.FromKMB,
		ToKMB:       o.ToKMB,
		FirstBucket: -1,
		PeakBucket:  -1,
	}
	from, to, ok := o.Intersection()
	if !ok {
		rec.Disjoint = true
		return rec, nil
	}
	rec.ChainageKM = (from + to) / 2

	ea, okA := pop.EventIndex(o.EventA)
	eb, okB := pop.EventIndex(o.EventB)
	if !okA || !okB {
		return rec, fmt.Errorf("segment %s: pair %s/%s not in population", seg.ID, o.EventA, o.EventB)
	}

	tl := res.Timeline
	occA, countA := occupancy(pop, res, ea, o.FromKMA, o.ToKMA)
	occB, countB := occupancy(pop, res, eb, o.FromKMB, o.ToKMB)

	area := seg.AreaM2()
	peak := -1.0
	for b := 0; b < tl.Buckets; b++ {
		a, c := countA[b], countB[b]
		if a > 0 && c > 0 {
			rec.Buckets++
			if !rec.Found {
				rec.Found = true
				rec.FirstBucket = b
				rec.FirstSec = tl.BucketStart(b)
				rec.FirstClock = model.Clock(rec.FirstSec)
				rec.BibsA = present(occA, b)
				rec.BibsB = present(occB, b)
			}
		}
		if a+c == 0 {
			continue
		}
		if dens := float64(a+c) / area; dens > peak {
			peak = dens
			rec.PeakBucket = b
			rec.PeakSec = tl.BucketStart(b)
			rec.PeakCountA = a
			rec.PeakCountB = c
			rec.PeakDensity = dens
		}
	}

	z, err := d.classifier.Classify(rec.PeakDensity)
	if err != nil {
		return rec, err
	}
	rec.PeakZone = z
	return rec, nil
}

// occupancy returns event e's runners inside [lo, hi) and their count per
// bucket.
func occupancy(pop *density.Population, res *density.Result, e int, lo, hi float64) ([]occupant, []int) {
	tl := res.Timeline
	diff := make([]int, tl.Buckets+1)
	var occ []occupant
	for i, tr := range pop.Tracks(e) {
		span, ok := tl.Occupancy(tr, res.Window(e, i), lo, hi)
		if !ok {
			continue
		}
		occ = append(occ, occupant{bib: pop.Bib(e, i), span: span})
		diff[span.First]++
		diff[span.Last+1]--
	}
	counts := make([]int, tl.Buckets)
	run := 0
	for b := range counts {
		run += diff[b]
		counts[b] = run
	}
	return occ, counts
}

func present(occ []occupant, b int) []string {
	var bibs []string
	for _, o := range occ {
		if o.span.Contains(b) {
			bibs = append(bibs, o.bib)
		}
	}
	sort.Strings(bibs)
	return bibs
}
