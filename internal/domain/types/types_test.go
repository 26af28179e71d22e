package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/thomjeff/run-density/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRunEntry(t *testing.T) {
	Convey("Given a queued RunEntry", t, func() {
		entry := types.RunEntry{
			ID:        "run-1",
			Status:    "queued",
			Submitted: time.Date(2025, 9, 14, 7, 0, 0, 0, time.UTC),
		}

		Convey("When encoding it as JSON", func() {
			raw, err := json.Marshal(entry)
			So(err, ShouldBeNil)
			var fields map[string]any
			So(json.Unmarshal(raw, &fields), ShouldBeNil)

			Convey("Then unset timestamps and days are omitted", func() {
				So(fields, ShouldContainKey, "id")
				So(fields, ShouldContainKey, "submitted")
				So(fields, ShouldNotContainKey, "started")
				So(fields, ShouldNotContainKey, "finished")
				So(fields, ShouldNotContainKey, "days")
				So(fields, ShouldNotContainKey, "error")
			})
		})

		Convey("When the run finished with a failed day", func() {
			now := entry.Submitted.Add(time.Minute)
			entry.Status = "done"
			entry.Started, entry.Finished = &now, &now
			entry.Days = []types.DayEntry{{Day: "sat", Segments: 3, Overlaps: 1}, {Day: "sun", Error: "validation"}}

			raw, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			Convey("Then each day is listed with its own error", func() {
				var back types.RunEntry
				So(json.Unmarshal(raw, &back), ShouldBeNil)
				So(back.Days, ShouldHaveLength, 2)
				So(back.Days[1].Error, ShouldEqual, "validation")
				So(back.Finished.Equal(now), ShouldBeTrue)
			})
		})
	})
}
