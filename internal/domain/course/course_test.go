package course_test

import (
	"errors"
	"testing"

	"github.com/thomjeff/run-density/internal/domain/course"
	"github.com/thomjeff/run-density/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func segments() []model.Segment {
	return []model.Segment{
		{ID: "B1", Label: "Bridge", FromKM: 2.0, ToKM: 2.5, WidthM: 3, Direction: model.DirectionBi},
		{ID: "A1", Label: "Start", FromKM: 0, ToKM: 0.9, WidthM: 5, Direction: model.DirectionUni},
		{ID: "A2", Label: "Queen St", FromKM: 0.9, ToKM: 2.0, WidthM: 5, Direction: model.DirectionUni},
	}
}

func TestLoad(t *testing.T) {
	events := []string{"Full", "10K"}

	Convey("Given a valid course", t, func() {
		c, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "10K", FromKMA: 2.0, ToKMA: 2.5, FromKMB: 2.1, ToKMB: 2.4},
		}, events)
		So(err, ShouldBeNil)

		Convey("Then segments are ordered by chainage", func() {
			ids := []string{}
			for _, s := range c.Segments() {
				ids = append(ids, s.ID)
			}
			So(ids, ShouldResemble, []string{"A1", "A2", "B1"})
		})

		Convey("And lookups by id work", func() {
			s, ok := c.Segment("B1")
			So(ok, ShouldBeTrue)
			So(s.Label, ShouldEqual, "Bridge")
			i, _ := c.Index("B1")
			So(i, ShouldEqual, 2)
			_, ok = c.Segment("Z9")
			So(ok, ShouldBeFalse)
		})

		Convey("And overlaps are grouped by segment and inherit direction", func() {
			So(c.Overlaps("B1"), ShouldHaveLength, 1)
			So(c.Overlaps("B1")[0].Direction, ShouldEqual, model.DirectionBi)
			So(c.Overlaps("A1"), ShouldBeEmpty)
			So(c.Disjoint(), ShouldBeEmpty)
		})
	})

	Convey("Given a segment with inverted chainage", t, func() {
		segs := segments()
		segs[0].FromKM, segs[0].ToKM = 2.5, 2.0
		_, err := course.Load("sun", segs, nil, events)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given a segment with zero width", t, func() {
		segs := segments()
		segs[1].WidthM = 0
		_, err := course.Load("sun", segs, nil, events)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given a segment without an id", t, func() {
		segs := segments()
		segs[1].ID = ""
		_, err := course.Load("sun", segs, nil, events)
		So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
	})

	Convey("Given an overlap on an undefined segment", t, func() {
		_, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "Z9", EventA: "Full", EventB: "10K", FromKMA: 0, ToKMA: 1, FromKMB: 0, ToKMB: 1},
		}, events)
		So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "Z9")
	})

	Convey("Given an overlap naming an event of another day", t, func() {
		_, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "5K", FromKMA: 2, ToKMA: 2.5, FromKMB: 2, ToKMB: 2.5},
		}, events)
		So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
	})

	Convey("Given an overlap sub-range outside its segment", t, func() {
		_, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "10K", FromKMA: 1.9, ToKMA: 2.5, FromKMB: 2, ToKMB: 2.5},
		}, events)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given an overlap whose width contradicts the segment", t, func() {
		_, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "10K", FromKMA: 2, ToKMA: 2.5, FromKMB: 2, ToKMB: 2.5, WidthM: 4},
		}, events)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given the same pair declared twice in reverse order", t, func() {
		_, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "10K", FromKMA: 2, ToKMA: 2.5, FromKMB: 2, ToKMB: 2.5},
			{SegmentID: "B1", EventA: "10K", EventB: "Full", FromKMA: 2, ToKMA: 2.5, FromKMB: 2, ToKMB: 2.5},
		}, events)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given sub-ranges that never intersect", t, func() {
		c, err := course.Load("sun", segments(), []model.Overlap{
			{SegmentID: "B1", EventA: "Full", EventB: "10K", FromKMA: 2.0, ToKMA: 2.2, FromKMB: 2.3, ToKMB: 2.5},
		}, events)

		Convey("Then the declaration is kept but flagged as disjoint", func() {
			So(err, ShouldBeNil)
			So(c.Disjoint(), ShouldHaveLength, 1)
			So(c.Overlaps("B1"), ShouldHaveLength, 1)
		})
	})

	Convey("Given several problems at once", t, func() {
		segs := segments()
		segs[0].WidthM = -1
		segs[1].Direction = ""
		_, err := course.Load("sun", segs, nil, events)

		Convey("Then every kind is reported", func() {
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
		})
	})
}
