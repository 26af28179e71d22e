package density

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/thomjeff/run-density/internal/domain/course"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// Cell is one segment × bucket × event entry of a day's density result.
type Cell struct {
	Segment  int
	Bucket   int
	Event    int
	Count    int
	Density  float64
	StartSec float64
}

// Result holds a day's runner counts and the context needed to read them.
type Result struct {
	Timeline Timeline
	Segments []model.Segment
	Events   []string
	Arena    *Arena

	windows [][]Window
	totals  []int32 // distinct runners, indexed segment*events+event
}

// Count returns the runners of event e on segment s during bucket b.
func (r *Result) Count(s, b, e int) int { return r.Arena.Count(s, b, e) }

// Density returns the areal density of event e on segment s during bucket b.
func (r *Result) Density(s, b, e int) float64 {
	return float64(r.Arena.Count(s, b, e)) / r.Segments[s].AreaM2()
}

// Stacked returns the runners of every event on segment s during bucket b.
func (r *Result) Stacked(s, b int) int { return r.Arena.Stacked(s, b) }

// StackedDensity returns the combined density of all events on segment s
// during bucket b.
func (r *Result) StackedDensity(s, b int) float64 {
	return float64(r.Arena.Stacked(s, b)) / r.Segments[s].AreaM2()
}

// Total returns how many distinct runners of event e entered segment s.
func (r *Result) Total(s, e int) int { return int(r.totals[s*len(r.Events)+e]) }

// Window returns the active sample window of runner i of event e.
func (r *Result) Window(e, i int) Window { return r.windows[e][i] }

// Each visits every cell ordered by segment chainage, bucket and event.
func (r *Result) Each(fn func(Cell)) {
	for s := range r.Segments {
		for b := 0; b < r.Timeline.Buckets; b++ {
			for e := range r.Events {
				fn(Cell{
					Segment:  s,
					Bucket:   b,
					Event:    e,
					Count:    r.Count(s, b, e),
					Density:  r.Density(s, b, e),
					StartSec: r.Timeline.BucketStart(b),
				})
			}
		}
	}
}

// Calculator fills density arenas.
type Calculator struct {
	concurrency int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithConcurrency bounds how many segments are filled at once.
func WithConcurrency(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCalculator builds a Calculator. Concurrency defaults to GOMAXPROCS.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute counts, for every segment and bucket, the runners of each event
// sampled inside the segment's half-open chainage range. Each segment's slab
// is written by exactly one goroutine.
func (c *Calculator) Compute(ctx context.Context, crs *course.Course, pop *Population, tl Timeline) (*Result, error) {
	const op = "density.compute"
	segs := crs.Segments()
	for _, s := range segs {
		if !(s.WidthM > 0) || !(s.LengthKM() > 0) {
			return nil, errkind.Wrap(op, model.ErrConfiguration,
				fmt.Errorf("segment %s: width %v m, length %v km", s.ID, s.WidthM, s.LengthKM()))
		}
	}

	events := pop.Names()
	if cells := float64(len(segs)) * float64(tl.Buckets) * float64(len(events)); cells > MaxArenaCells {
		return nil, errkind.Wrap(op, model.ErrValidation,
			fmt.Errorf("%w: %d segments × %d buckets × %d events, limit %d", ErrArenaTooLarge, len(segs), tl.Buckets, len(events), MaxArenaCells))
	}
	res := &Result{
		Timeline: tl,
		Segments: segs,
		Events:   events,
		Arena:    NewArena(len(segs), tl.Buckets, len(events)),
		windows:  make([][]Window, len(events)),
		totals:   make([]int32, len(segs)*len(events)),
	}
	for e := range events {
		tracks := pop.Tracks(e)
		res.windows[e] = make([]Window, len(tracks))
		for i, tr := range tracks {
			res.windows[e][i] = tl.Window(tr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for s, seg := range segs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("segment %s: fill panicked: %v", seg.ID, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			slab := res.Arena.slab(s)
			totals := res.totals[s*len(events) : (s+1)*len(events)]
			for e := range events {
				for i, tr := range pop.Tracks(e) {
					span, ok := tl.Occupancy(tr, res.windows[e][i], seg.FromKM, seg.ToKM)
					if !ok {
						continue
					}
					totals[e]++
					for b := span.First; b <= span.Last; b++ {
						slab[b*len(events)+e]++
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errkind.Op(op, err)
	}
	return res, nil
}
