package pace_test

import (
	"errors"
	"testing"

	"github.com/thomjeff/run-density/internal/domain/pace"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConstant(t *testing.T) {
	Convey("Given a constant 5 min/km profile", t, func() {
		p, err := pace.Constant(5)
		So(err, ShouldBeNil)
		So(p.Kind(), ShouldEqual, pace.KindConstant)

		Convey("Then distance grows linearly with time", func() {
			So(p.Distance(0), ShouldEqual, 0)
			So(p.Distance(25), ShouldEqual, 5)
			So(p.Distance(-3), ShouldEqual, 0)
		})

		Convey("And elapsed time inverts distance", func() {
			So(p.Elapsed(5), ShouldEqual, 25)
			So(p.Distance(p.Elapsed(7.3)), ShouldAlmostEqual, 7.3, 1e-12)
		})

		Convey("And the fastest speed is 0.2 km/min", func() {
			So(p.MaxSpeed(), ShouldAlmostEqual, 0.2, 1e-12)
		})
	})

	Convey("Given non-positive paces", t, func() {
		for _, v := range []float64{0, -4} {
			_, err := pace.Constant(v)
			So(errors.Is(err, pace.ErrInvalidPace), ShouldBeTrue)
		}
	})
}

func TestSplits(t *testing.T) {
	Convey("Given a negative split: 6 min/km for 5 km then 4 min/km", t, func() {
		p, err := pace.Splits([]pace.Band{
			{FromKM: 0, ToKM: 5, MinPerKM: 6},
			{FromKM: 5, ToKM: 10, MinPerKM: 4},
		})
		So(err, ShouldBeNil)
		So(p.Kind(), ShouldEqual, pace.KindTable)

		Convey("Then the runner is at 5 km after 30 minutes", func() {
			So(p.Distance(30), ShouldAlmostEqual, 5, 1e-12)
		})

		Convey("And speeds up over the second half", func() {
			So(p.Distance(34), ShouldAlmostEqual, 6, 1e-12)
			So(p.Elapsed(10), ShouldAlmostEqual, 50, 1e-12)
		})

		Convey("And extrapolates past the table at the final pace", func() {
			So(p.Distance(54), ShouldAlmostEqual, 11, 1e-12)
			So(p.Elapsed(12), ShouldAlmostEqual, 58, 1e-12)
		})

		Convey("And reports the faster band as its max speed", func() {
			So(p.MaxSpeed(), ShouldAlmostEqual, 0.25, 1e-12)
		})

		Convey("And renders a stable key", func() {
			So(p.String(), ShouldEqual, "table:0/0,5/30,10/50")
		})
	})

	Convey("Given bands with a gap", t, func() {
		_, err := pace.Splits([]pace.Band{
			{FromKM: 0, ToKM: 5, MinPerKM: 6},
			{FromKM: 6, ToKM: 10, MinPerKM: 4},
		})
		So(errors.Is(err, pace.ErrInvalidTable), ShouldBeTrue)
	})
}

func TestTable(t *testing.T) {
	Convey("Given table rows that do not start at the origin", t, func() {
		_, err := pace.Table([]pace.Point{{KM: 1, Minutes: 5}, {KM: 2, Minutes: 10}})
		So(errors.Is(err, pace.ErrInvalidTable), ShouldBeTrue)
	})

	Convey("Given a table with a stalled time coordinate", t, func() {
		_, err := pace.Table([]pace.Point{{}, {KM: 1, Minutes: 5}, {KM: 2, Minutes: 5}})
		So(errors.Is(err, pace.ErrInvalidTable), ShouldBeTrue)
	})

	Convey("Given a valid table", t, func() {
		pts := []pace.Point{{}, {KM: 1, Minutes: 5}}
		p, err := pace.Table(pts)
		So(err, ShouldBeNil)

		Convey("Then mutating the input does not change the profile", func() {
			pts[1].Minutes = 50
			So(p.Distance(5), ShouldAlmostEqual, 1, 1e-12)
		})
	})
}

func TestTrajectory(t *testing.T) {
	Convey("Given a runner starting at 07:00 with a 60 minute cutoff", t, func() {
		p, _ := pace.Constant(4)
		start := 7 * 3600.0
		tr := pace.NewTrajectory(start, start+3600, 10, p)

		Convey("Then it has no position before the start", func() {
			_, ok := tr.Position(start - 1)
			So(ok, ShouldBeFalse)
		})

		Convey("And is at the origin exactly at the start", func() {
			km, ok := tr.Position(start)
			So(ok, ShouldBeTrue)
			So(km, ShouldEqual, 0)
		})

		Convey("And has finished once it reaches the finish distance", func() {
			_, ok := tr.Position(start + 40*60)
			So(ok, ShouldBeFalse)
			km, ok := tr.Position(start + 39*60)
			So(ok, ShouldBeTrue)
			So(km, ShouldEqual, 9.75)
		})

		Convey("And identical inputs give identical positions", func() {
			other := pace.NewTrajectory(start, start+3600, 10, p)
			for s := start; s <= start+3600; s += 37 {
				a, okA := tr.Position(s)
				b, okB := other.Position(s)
				So(a, ShouldEqual, b)
				So(okA, ShouldEqual, okB)
			}
		})

		Convey("And arrival inverts distance", func() {
			So(tr.Arrival(2), ShouldEqual, start+8*60)
		})
	})

	Convey("Given an open-ended course", t, func() {
		p, _ := pace.Constant(4)
		tr := pace.NewTrajectory(0, 600, 0, p)

		Convey("Then the runner is positioned until the cutoff, inclusive", func() {
			km, ok := tr.Position(600)
			So(ok, ShouldBeTrue)
			So(km, ShouldEqual, 2.5)
			_, ok = tr.Position(600.5)
			So(ok, ShouldBeFalse)
		})
	})
}
