package density

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/thomjeff/run-density/internal/domain/course"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
	"github.com/thomjeff/run-density/internal/domain/zone"
)

func constant(minPerKM float64) pace.Profile {
	p, err := pace.Constant(minPerKM)
	if err != nil {
		panic(err)
	}
	return p
}

func runners(n int, minPerKM float64, offsetStep float64) []model.Runner {
	out := make([]model.Runner, n)
	for i := range out {
		out[i] = model.Runner{
			Bib:            fmt.Sprintf("%d", 1000+i),
			StartOffsetSec: float64(i) * offsetStep,
			Pace:           constant(minPerKM + float64(i%7)*0.25),
		}
	}
	return out
}

func compute(segs []model.Segment, events []model.Event, res model.Resolution) (*Result, error) {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	crs, err := course.Load("sat", segs, nil, names)
	if err != nil {
		return nil, err
	}
	pop := NewPopulation(events)
	tl, err := NewTimeline(pop, res)
	if err != nil {
		return nil, err
	}
	return NewCalculator(WithConcurrency(2)).Compute(context.Background(), crs, pop, tl)
}

func TestTimeline(t *testing.T) {
	Convey("Given two events starting at different times", t, func() {
		pop := NewPopulation([]model.Event{
			{Name: "10K", StartMin: 440, DurationMin: 90, Runners: runners(3, 6, 0)},
			{Name: "Full", StartMin: 420.5, DurationMin: 300, Runners: runners(2, 4, 0)},
		})

		Convey("Events are ordered by start time", func() {
			So(pop.Names(), ShouldResemble, []string{"Full", "10K"})
			So(pop.Runners(), ShouldEqual, 5)
		})

		Convey("The horizon starts at the earliest start aligned to the bucket width", func() {
			tl, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60})
			So(err, ShouldBeNil)
			So(tl.OriginSec, ShouldEqual, 420*60)
			So(tl.BucketStart(tl.Buckets), ShouldBeGreaterThanOrEqualTo, (420.5+300)*60)
			So(tl.BucketStart(tl.Buckets-1), ShouldBeLessThan, (420.5+300)*60)
		})

		Convey("Samples per bucket follow the fastest runner and spatial step", func() {
			tl, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60})
			So(err, ShouldBeNil)
			// 4 min/km covers 0.25 km per minute, 25 steps of 10 m
			So(tl.SamplesPerBucket, ShouldEqual, 25)
			So(tl.SampleTime(25), ShouldEqual, tl.BucketStart(1))
			So(tl.BucketOf(49), ShouldEqual, 1)
		})

		Convey("An explicit sample count wins", func() {
			tl, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60, SamplesPerBucket: 3})
			So(err, ShouldBeNil)
			So(tl.SamplesPerBucket, ShouldEqual, 3)
			So(tl.SampleTime(4), ShouldEqual, tl.OriginSec+80)
		})

		Convey("The sample count never exceeds one per second", func() {
			tl, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.0001, BucketSeconds: 30})
			So(err, ShouldBeNil)
			So(tl.SamplesPerBucket, ShouldEqual, 30)
		})
	})

	Convey("An empty population has no horizon", t, func() {
		_, err := NewTimeline(NewPopulation(nil), model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60})
		So(errors.Is(err, ErrEmptyHorizon), ShouldBeTrue)
	})

	Convey("Horizons beyond the bucket limit are refused", t, func() {
		fine := model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 1}

		Convey("for a huge finite cutoff", func() {
			pop := NewPopulation([]model.Event{{Name: "Full", StartMin: 0, DurationMin: 1e15, Runners: runners(1, 5, 0)}})
			_, err := NewTimeline(pop, fine)
			So(errors.Is(err, ErrHorizonTooLong), ShouldBeTrue)
		})

		Convey("for an infinite cutoff", func() {
			pop := NewPopulation([]model.Event{{Name: "Full", StartMin: 0, DurationMin: math.Inf(1), Runners: runners(1, 5, 0)}})
			_, err := NewTimeline(pop, fine)
			So(errors.Is(err, ErrHorizonTooLong), ShouldBeTrue)
		})

		Convey("for too many samples", func() {
			pop := NewPopulation([]model.Event{{Name: "Full", StartMin: 0, DurationMin: 60, Runners: runners(1, 5, 0)}})
			_, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60, SamplesPerBucket: 1 << 30})
			So(errors.Is(err, ErrHorizonTooLong), ShouldBeTrue)
		})
	})
}

func TestOccupancyMatchesSampling(t *testing.T) {
	Convey("Binary-searched occupancy equals testing every sample", t, func() {
		split, err := pace.Splits([]pace.Band{
			{FromKM: 0, ToKM: 2, MinPerKM: 6.5},
			{FromKM: 2, ToKM: 5, MinPerKM: 4.2},
			{FromKM: 5, ToKM: 10, MinPerKM: 5.1},
		})
		So(err, ShouldBeNil)
		events := []model.Event{
			{Name: "10K", StartMin: 0, DurationMin: 70, DistanceKM: 10, Runners: append(runners(20, 4.5, 7), model.Runner{Bib: "split", Pace: split})},
			{Name: "Half", StartMin: 5, DurationMin: 40, Runners: runners(10, 5, 13)},
		}
		pop := NewPopulation(events)
		tl, err := NewTimeline(pop, model.Resolution{SpatialStepKM: 0.05, BucketSeconds: 45})
		So(err, ShouldBeNil)

		ranges := [][2]float64{{0, 0.4}, {0.4, 2}, {2, 2.05}, {3.3, 7.9}, {9.5, 10}, {10, 12}}
		mismatches := 0
		for e := range pop.Events() {
			for _, tr := range pop.Tracks(e) {
				w := tl.Window(tr)
				for _, r := range ranges {
					seg := model.Segment{FromKM: r[0], ToKM: r[1]}
					want := map[int]bool{}
					for i := 0; i < tl.Samples(); i++ {
						if km, ok := tr.Position(tl.SampleTime(i)); ok && seg.Contains(km) {
							want[tl.BucketOf(i)] = true
						}
					}
					span, ok := tl.Occupancy(tr, w, r[0], r[1])
					if ok != (len(want) > 0) {
						mismatches++
						continue
					}
					for b := 0; b < tl.Buckets; b++ {
						if ok && span.Contains(b) != want[b] {
							mismatches++
						}
					}
				}
			}
		}
		So(mismatches, ShouldEqual, 0)
	})
}

func TestCompute(t *testing.T) {
	res := model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60, SamplesPerBucket: 1}

	Convey("Given adjacent segments and a runner reaching their boundary on a sample", t, func() {
		segs := []model.Segment{
			{ID: "B", FromKM: 1, ToKM: 2, WidthM: 1, Direction: model.DirectionUni},
			{ID: "A", FromKM: 0, ToKM: 1, WidthM: 1, Direction: model.DirectionUni},
		}
		events := []model.Event{{
			Name: "5K", Day: "sat", StartMin: 0, DurationMin: 60,
			Runners: []model.Runner{{Bib: "1", Pace: constant(5)}},
		}}
		r, err := compute(segs, events, res)
		So(err, ShouldBeNil)

		Convey("Segments are ordered by chainage", func() {
			So(r.Segments[0].ID, ShouldEqual, "A")
		})

		Convey("The runner at exactly 1.0 km counts for the segment starting there", func() {
			// bucket 5 starts at 300 s, when the runner is at 1.0 km
			So(r.Count(0, 4, 0), ShouldEqual, 1)
			So(r.Count(0, 5, 0), ShouldEqual, 0)
			So(r.Count(1, 5, 0), ShouldEqual, 1)
		})

		Convey("Each runner is in at most one segment per sample", func() {
			for b := 0; b < r.Timeline.Buckets; b++ {
				So(r.Count(0, b, 0)+r.Count(1, b, 0), ShouldBeLessThanOrEqualTo, 1)
			}
			So(r.Total(0, 0), ShouldEqual, 1)
			So(r.Total(1, 0), ShouldEqual, 1)
		})
	})

	Convey("Given 40 runners inside a 500 m by 3 m segment", t, func() {
		segs := []model.Segment{{ID: "S1", FromKM: 0, ToKM: 0.5, WidthM: 3, Direction: model.DirectionBi}}
		events := []model.Event{{
			Name: "10K", Day: "sat", StartMin: 420, DurationMin: 90,
			Runners: runners(40, 5, 0),
		}}
		r, err := compute(segs, events, res)
		So(err, ShouldBeNil)

		Convey("Density is 40 over 1500 square metres and classifies green", func() {
			So(r.Count(0, 0, 0), ShouldEqual, 40)
			So(r.Density(0, 0, 0), ShouldAlmostEqual, 0.0267, 0.0001)
			c, err := zone.NewClassifier(zone.DefaultThresholds())
			So(err, ShouldBeNil)
			z, err := c.Classify(r.Density(0, 0, 0))
			So(err, ShouldBeNil)
			So(z, ShouldEqual, zone.Green)
		})

		Convey("Every density is non-negative", func() {
			negative := 0
			r.Each(func(c Cell) {
				if c.Density < 0 {
					negative++
				}
			})
			So(negative, ShouldEqual, 0)
		})
	})

	Convey("Given several events sharing a segment", t, func() {
		segs := []model.Segment{{ID: "S1", FromKM: 0, ToKM: 1, WidthM: 5, Direction: model.DirectionUni}}
		events := []model.Event{
			{Name: "Full", Day: "sat", StartMin: 0, DurationMin: 30, Runners: runners(12, 5, 0)},
			{Name: "10K", Day: "sat", StartMin: 0, DurationMin: 30, Runners: runners(8, 5, 0)},
		}
		r, err := compute(segs, events, res)
		So(err, ShouldBeNil)

		Convey("Stacked counts sum the events", func() {
			So(r.Events, ShouldResemble, []string{"10K", "Full"})
			So(r.Stacked(0, 0), ShouldEqual, 20)
			So(r.StackedDensity(0, 0), ShouldAlmostEqual, 20.0/5000)
		})

		Convey("Each visits cells in segment, bucket, event order", func() {
			var cells []Cell
			r.Each(func(c Cell) { cells = append(cells, c) })
			So(len(cells), ShouldEqual, r.Timeline.Buckets*2)
			So(cells[0].Event, ShouldEqual, 0)
			So(cells[1].Event, ShouldEqual, 1)
			So(cells[2].Bucket, ShouldEqual, 1)
		})
	})

	Convey("Given an event with no runners", t, func() {
		segs := []model.Segment{{ID: "S1", FromKM: 0, ToKM: 1, WidthM: 5, Direction: model.DirectionUni}}
		events := []model.Event{{Name: "Kids", Day: "sat", StartMin: 60, DurationMin: 20}}
		r, err := compute(segs, events, res)

		Convey("The segment reports zero counts", func() {
			So(err, ShouldBeNil)
			So(r.Stacked(0, 0), ShouldEqual, 0)
			So(r.Total(0, 0), ShouldEqual, 0)
		})
	})

	Convey("A grid beyond the cell limit is refused before allocation", t, func() {
		segs := make([]model.Segment, 200)
		for i := range segs {
			segs[i] = model.Segment{ID: fmt.Sprintf("S%03d", i), FromKM: float64(i), ToKM: float64(i + 1), WidthM: 4, Direction: model.DirectionUni}
		}
		crs, err := course.Load("sat", segs, nil, []string{"10K"})
		So(err, ShouldBeNil)
		pop := NewPopulation([]model.Event{{Name: "10K", Day: "sat", StartMin: 0, DurationMin: 60}})
		tl := Timeline{BucketSec: 1, Buckets: MaxBuckets, SamplesPerBucket: 1}

		_, err = NewCalculator().Compute(context.Background(), crs, pop, tl)
		So(errors.Is(err, ErrArenaTooLarge), ShouldBeTrue)
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})

	Convey("A cancelled context stops the fill", t, func() {
		segs := []model.Segment{{ID: "S1", FromKM: 0, ToKM: 1, WidthM: 5, Direction: model.DirectionUni}}
		events := []model.Event{{Name: "10K", Day: "sat", StartMin: 0, DurationMin: 30, Runners: runners(3, 5, 0)}}
		crs, err := course.Load("sat", segs, nil, []string{"10K"})
		So(err, ShouldBeNil)
		pop := NewPopulation(events)
		tl, err := NewTimeline(pop, res)
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = NewCalculator().Compute(ctx, crs, pop, tl)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
