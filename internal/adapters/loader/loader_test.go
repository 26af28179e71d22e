package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
)

func TestReadSegments(t *testing.T) {
	Convey("Given a segment table", t, func() {
		Convey("Rows are parsed with optional day scoping", func() {
			segs, err := ReadSegments(strings.NewReader(
				"segment_id,segment_label,from_km,to_km,width_m,direction,day\n"+
					"A1,Start,0,0.9,5,UNI,\n"+
					"B1,Loop,1.8,3,4,bi,Sun\n"), "segments.csv")
			So(err, ShouldBeNil)
			So(segs, ShouldResemble, []model.Segment{
				{ID: "A1", Label: "Start", FromKM: 0, ToKM: 0.9, WidthM: 5, Direction: model.DirectionUni},
				{ID: "B1", Label: "Loop", FromKM: 1.8, ToKM: 3, WidthM: 4, Direction: model.DirectionBi, Day: "sun"},
			})
		})

		Convey("A missing column is a schema error naming it", func() {
			_, err := ReadSegments(strings.NewReader("segment_id,from_km,to_km,width_m,direction\nA1,0,1,5,uni\n"), "segments.csv")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "segment_label")
		})

		Convey("An unparsable number is a schema error with its line", func() {
			_, err := ReadSegments(strings.NewReader(
				"segment_id,segment_label,from_km,to_km,width_m,direction\nA1,Start,zero,1,5,uni\n"), "segments.csv")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "line 2")
		})

		Convey("An empty file is a schema error", func() {
			_, err := ReadSegments(strings.NewReader(""), "segments.csv")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
		})
	})
}

func TestReadOverlaps(t *testing.T) {
	Convey("Given an overlap table", t, func() {
		header := "seg_id,segment_label,eventA,eventB,from_km_A,to_km_A,from_km_B,to_km_B,direction,width_m\n"

		Convey("Empty direction and width defer to the segment", func() {
			ovs, err := ReadOverlaps(strings.NewReader(header+"A2,Bridge,Full,10K,0.9,1.8,1.0,1.8,,\n"), "flow.csv")
			So(err, ShouldBeNil)
			So(ovs, ShouldResemble, []model.Overlap{{
				SegmentID: "A2", Label: "Bridge", EventA: "Full", EventB: "10K",
				FromKMA: 0.9, ToKMA: 1.8, FromKMB: 1.0, ToKMB: 1.8,
			}})
		})

		Convey("A missing sub-range bound is a schema error", func() {
			_, err := ReadOverlaps(strings.NewReader(header+"A2,Bridge,Full,10K,0.9,,1.0,1.8,bi,3\n"), "flow.csv")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "to_km_A")
		})
	})
}

func TestReadRunners(t *testing.T) {
	Convey("Given a runner table", t, func() {
		Convey("Flat paces become constant profiles", func() {
			rs, err := ReadRunners(strings.NewReader("runner_id,pace,start_offset\n7,5.5,20\n8,4,\n"), "r.csv", "10K")
			So(err, ShouldBeNil)
			So(rs, ShouldHaveLength, 2)
			So(rs[0].Bib, ShouldEqual, "7")
			So(rs[0].StartOffsetSec, ShouldEqual, 20)
			So(rs[0].Pace.Kind(), ShouldEqual, pace.KindConstant)
			So(rs[1].StartOffsetSec, ShouldEqual, 0)
		})

		Convey("Splits replace the flat pace", func() {
			rs, err := ReadRunners(strings.NewReader("runner_id,pace,splits\n9,,0-1:7;1-3:5.5\n"), "r.csv", "10K")
			So(err, ShouldBeNil)
			So(rs[0].Pace.Kind(), ShouldEqual, pace.KindTable)
			So(rs[0].Pace.Elapsed(3), ShouldEqual, 18)
		})

		Convey("An event column filters rows", func() {
			rs, err := ReadRunners(strings.NewReader("event,runner_id,pace\nFull,1,5\n10K,2,5\nfull,3,5\n"), "r.csv", "Full")
			So(err, ShouldBeNil)
			So(rs, ShouldHaveLength, 2)
			So(rs[1].Bib, ShouldEqual, "3")
		})

		Convey("A non-positive pace is a schema error", func() {
			_, err := ReadRunners(strings.NewReader("runner_id,pace\n1,0\n"), "r.csv", "10K")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
		})

		Convey("Malformed splits are a schema error", func() {
			_, err := ReadRunners(strings.NewReader("runner_id,pace,splits\n1,5,0-1=7\n"), "r.csv", "10K")
			So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
		})
	})
}

func TestParseStart(t *testing.T) {
	Convey("Start times are minutes or clocks", t, func() {
		v, err := ParseStart("420")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 420)

		v, err = ParseStart("07:20")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 440)

		_, err = ParseStart("")
		So(err, ShouldNotBeNil)
		_, err = ParseStart("seven")
		So(err, ShouldNotBeNil)
	})
}

func TestLoad(t *testing.T) {
	Convey("Given the sample manifest", t, func() {
		sc, err := Load(context.Background(), filepath.Join("testdata", "manifest.yaml"),
			model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60, SamplesPerBucket: 4})
		So(err, ShouldBeNil)

		Convey("Manifest resolution overrides the defaults it sets", func() {
			So(sc.Resolution, ShouldResemble, model.Resolution{SpatialStepKM: 0.02, BucketSeconds: 30, SamplesPerBucket: 4})
		})

		Convey("Course tables are loaded", func() {
			So(sc.Segments, ShouldHaveLength, 3)
			So(sc.Segments[2].Day, ShouldEqual, "sun")
			So(sc.Overlaps, ShouldHaveLength, 1)
			So(sc.Overlaps[0].WidthM, ShouldEqual, 3)
		})

		Convey("Events carry their own runners", func() {
			So(sc.Events, ShouldHaveLength, 3)
			full, tenK, half := sc.Events[0], sc.Events[1], sc.Events[2]
			So(full.StartMin, ShouldEqual, 420)
			So(full.Runners, ShouldHaveLength, 3)
			So(full.Runners[2].Pace.Kind(), ShouldEqual, pace.KindTable)
			So(tenK.StartMin, ShouldEqual, 440)
			So(tenK.Runners, ShouldHaveLength, 2)
			So(half.StartMin, ShouldEqual, 460.5)
			So(half.Day, ShouldEqual, "sun")
			So(sc.Days(), ShouldResemble, []string{"sat", "sun"})
		})
	})

	Convey("A missing manifest is a schema error", t, func() {
		_, err := Load(context.Background(), filepath.Join("testdata", "absent.yaml"), model.Resolution{})
		So(errors.Is(err, model.ErrSchema), ShouldBeTrue)
	})

	Convey("Given a two-day manifest with one bad day", t, func() {
		dir := t.TempDir()
		write := func(name, body string) {
			So(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600), ShouldBeNil)
		}
		write("segments.csv", "segment_id,segment_label,from_km,to_km,width_m,direction\nA1,Start,0,1,5,uni\n")
		write("runners.csv", "event,runner_id,pace\nSat,1,5\nSun,2,5\nSun,3,0\n")
		write("manifest.yaml", `segments: segments.csv
events:
  - name: Sat
    day: sat
    start_time: 420
    event_duration_minutes: 60
    runners: runners.csv
  - name: Sun
    day: sun
    start_time: 420
    event_duration_minutes: 60
    runners: runners.csv
  - name: Mon
    day: mon
    start_time: "seven"
    event_duration_minutes: 60
`)

		sc, err := Load(context.Background(), filepath.Join(dir, "manifest.yaml"), model.Resolution{SpatialStepKM: 0.01, BucketSeconds: 60})

		Convey("The load succeeds and every day is kept", func() {
			So(err, ShouldBeNil)
			So(sc.Days(), ShouldResemble, []string{"mon", "sat", "sun"})
		})

		Convey("The good day carries its runners and no problems", func() {
			So(sc.Events[0].Problems, ShouldBeEmpty)
			So(sc.Events[0].Runners, ShouldHaveLength, 1)
		})

		Convey("The unusable pace is recorded on its own event", func() {
			So(sc.Events[1].Problems, ShouldHaveLength, 1)
			So(errors.Is(sc.Events[1].Problems[0], model.ErrSchema), ShouldBeTrue)
		})

		Convey("The unparsable start is recorded on its own event", func() {
			So(sc.Events[2].Problems, ShouldHaveLength, 1)
			So(errors.Is(sc.Events[2].Problems[0], model.ErrValidation), ShouldBeTrue)
		})
	})
}
