package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/thomjeff/run-density/internal/adapters/repository"
	service "github.com/thomjeff/run-density/internal/app"
	"github.com/thomjeff/run-density/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func waitFinished(ctx context.Context, svc *service.Service, id string) repository.Run {
	deadline := time.Now().Add(10 * time.Second)
	for {
		run, err := svc.Run(ctx, id)
		So(err, ShouldBeNil)
		if run.Status.Finished() || time.Now().After(deadline) {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(
			service.WithWorkerCount(2),
			service.WithDefaultResolution(model.Resolution{SpatialStepKM: 0.05, BucketSeconds: 60}),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a scenario is analysed end-to-end", func() {
			id, _, err := svc.Submit(ctx, scenario())
			So(err, ShouldBeNil)
			run := waitFinished(ctx, svc, id)

			Convey("Then the run completes with one day", func() {
				So(run.Status, ShouldEqual, repository.StatusDone)
				So(run.Result.Days, ShouldHaveLength, 1)
				So(run.Result.Failed(), ShouldEqual, 0)
			})

			Convey("Then the listing summarises the day", func() {
				entries, err := svc.Runs(ctx, 10)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].ID, ShouldEqual, id)
				So(entries[0].Status, ShouldEqual, "done")
				So(entries[0].Days[0].Segments, ShouldEqual, 2)
				So(entries[0].Days[0].Overlaps, ShouldEqual, 1)
				So(entries[0].Finished, ShouldNotBeNil)
			})

			Convey("Then the grid is served as CSV", func() {
				var buf bytes.Buffer
				So(svc.Grid(ctx, id, "sat", &buf), ShouldBeNil)
				rows, err := csv.NewReader(&buf).ReadAll()
				So(err, ShouldBeNil)
				So(len(rows), ShouldBeGreaterThan, 1)
				So(rows[0][0], ShouldEqual, "day")
			})

			Convey("Then an unknown day is reported", func() {
				var buf bytes.Buffer
				err := svc.Grid(ctx, id, "mon", &buf)
				So(errors.Is(err, service.ErrUnknownDay), ShouldBeTrue)
			})
		})

		Convey("When a day fails validation", func() {
			sc := scenario()
			sc.Events[1].DurationMin = 0
			id, _, err := svc.Submit(ctx, sc)
			So(err, ShouldBeNil)
			run := waitFinished(ctx, svc, id)

			Convey("Then the run is done and the day carries the error", func() {
				So(run.Status, ShouldEqual, repository.StatusDone)
				So(run.Result.Failed(), ShouldEqual, 1)
				So(errors.Is(run.Result.Days[0].Err, model.ErrValidation), ShouldBeTrue)

				var buf bytes.Buffer
				So(errors.Is(svc.Grid(ctx, id, "sat", &buf), model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When an unknown run is requested", func() {
			_, err := svc.Run(ctx, "nope")

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
