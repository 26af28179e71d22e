package density

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
)

// Limits on one day's discretisation.
const (
	MaxBuckets    = 1 << 20
	MaxSamples    = 1 << 32
	MaxArenaCells = 1 << 27
)

var (
	// ErrEmptyHorizon is returned when a day has no time span to analyse.
	ErrEmptyHorizon = errors.New("empty analysis horizon")
	// ErrHorizonTooLong is returned when a day needs more buckets or samples
	// than MaxBuckets or MaxSamples.
	ErrHorizonTooLong = errors.New("analysis horizon too long")
	// ErrArenaTooLarge is returned when a day's grid exceeds MaxArenaCells.
	ErrArenaTooLarge = errors.New("density grid too large")
)

// Timeline discretises a day's horizon into fixed-width buckets, each
// sampled at SamplesPerBucket evenly spaced instants. Sample 0 of every
// bucket falls exactly on the bucket start.
type Timeline struct {
	OriginSec        float64
	BucketSec        float64
	Buckets          int
	SamplesPerBucket int
}

// NewTimeline covers the population's horizon at the given resolution. When
// the resolution leaves SamplesPerBucket unset, enough samples are taken
// that the fastest runner moves at most one spatial step between samples.
func NewTimeline(pop *Population, res model.Resolution) (Timeline, error) {
	if err := res.Validate(); err != nil {
		return Timeline{}, err
	}
	start, end := pop.Horizon()
	if !(end > start) {
		return Timeline{}, fmt.Errorf("%w: [%v, %v]", ErrEmptyHorizon, start, end)
	}
	width := float64(res.BucketSeconds)
	origin := math.Floor(start/width) * width
	buckets := math.Ceil((end - origin) / width)
	if !(buckets <= MaxBuckets) {
		return Timeline{}, fmt.Errorf("%w: %v buckets of %v s, limit %d", ErrHorizonTooLong, buckets, width, MaxBuckets)
	}
	tl := Timeline{
		OriginSec:        origin,
		BucketSec:        width,
		Buckets:          int(buckets),
		SamplesPerBucket: res.SamplesPerBucket,
	}
	if tl.SamplesPerBucket == 0 {
		n := math.Ceil(width * pop.MaxSpeed() / res.SpatialStepKM)
		tl.SamplesPerBucket = int(min(max(n, 1), width))
	}
	if float64(tl.Buckets)*float64(tl.SamplesPerBucket) > MaxSamples {
		return Timeline{}, fmt.Errorf("%w: %d buckets × %d samples, limit %d", ErrHorizonTooLong, tl.Buckets, tl.SamplesPerBucket, int64(MaxSamples))
	}
	return tl, nil
}

// Samples returns the total number of sample instants.
func (tl Timeline) Samples() int { return tl.Buckets * tl.SamplesPerBucket }

// SampleTime returns the time of sample i in seconds.
func (tl Timeline) SampleTime(i int) float64 {
	b, k := i/tl.SamplesPerBucket, i%tl.SamplesPerBucket
	return tl.BucketStart(b) + float64(k)*tl.BucketSec/float64(tl.SamplesPerBucket)
}

// BucketStart returns the start time of bucket b in seconds.
func (tl Timeline) BucketStart(b int) float64 { return tl.OriginSec + float64(b)*tl.BucketSec }

// BucketOf returns the bucket holding sample i.
func (tl Timeline) BucketOf(i int) int { return i / tl.SamplesPerBucket }

// Window is the half-open range of sample indices during which a trajectory
// is active.
type Window struct {
	First int
	End   int
}

// Window locates the samples within [start, cutoff] of tr.
func (tl Timeline) Window(tr pace.Trajectory) Window {
	n := tl.Samples()
	return Window{
		First: sort.Search(n, func(i int) bool { return tl.SampleTime(i) >= tr.Start() }),
		End:   sort.Search(n, func(i int) bool { return tl.SampleTime(i) > tr.Cutoff() }),
	}
}

// Span is an inclusive range of bucket indices.
type Span struct {
	First int
	Last  int
}

// Contains reports whether bucket b lies in the span.
func (s Span) Contains(b int) bool { return b >= s.First && b <= s.Last }

// Occupancy returns the buckets in which tr is sampled inside [lo, hi).
// Positions are non-decreasing over samples, so the occupied samples are
// contiguous and found by binary search on forward-evaluated positions;
// the result equals testing every sample.
func (tl Timeline) Occupancy(tr pace.Trajectory, w Window, lo, hi float64) (Span, bool) {
	if w.First >= w.End {
		return Span{}, false
	}
	upper := hi
	if f := tr.FinishKM(); f > 0 && f < upper {
		upper = f
	}
	if lo >= upper {
		return Span{}, false
	}
	n := w.End - w.First
	at := func(k int) float64 { return tr.Distance(tl.SampleTime(w.First + k)) }
	a := w.First + sort.Search(n, func(k int) bool { return at(k) >= lo })
	b := w.First + sort.Search(n, func(k int) bool { return at(k) >= upper })
	if a >= b {
		return Span{}, false
	}
	return Span{First: tl.BucketOf(a), Last: tl.BucketOf(b - 1)}, true
}
