package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thomjeff/run-density/internal/adapters/http/api"
	"github.com/thomjeff/run-density/internal/adapters/mq/queue"
	"github.com/thomjeff/run-density/internal/adapters/repository"
	service "github.com/thomjeff/run-density/internal/app"
	"github.com/thomjeff/run-density/internal/domain/engine"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/types"
	"github.com/thomjeff/run-density/pkg/errkind"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	submitted []model.Scenario
	submitErr error
	duplicate bool
	runs      map[string]repository.Run
	gridErr   error
	limits    []int
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{runs: make(map[string]repository.Run)}
}

func (m *mockDependencies) Submit(ctx context.Context, sc model.Scenario) (string, bool, error) {
	if m.submitErr != nil {
		return "", false, m.submitErr
	}
	m.submitted = append(m.submitted, sc)
	return "run-1", m.duplicate, nil
}

func (m *mockDependencies) Run(ctx context.Context, id string) (repository.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return repository.Run{}, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	return run, nil
}

func (m *mockDependencies) Runs(ctx context.Context, limit int) ([]types.RunEntry, error) {
	m.limits = append(m.limits, limit)
	return []types.RunEntry{{ID: "run-1", Status: "queued"}}, nil
}

func (m *mockDependencies) Grid(ctx context.Context, id, day string, w io.Writer) error {
	if m.gridErr != nil {
		return m.gridErr
	}
	_, err := io.WriteString(w, "day,segment_id\n"+day+",S1\n")
	return err
}

type mockStats struct{}

func (mockStats) GetStats(ctx context.Context) types.Stats {
	return types.Stats{Runs: 3, Workers: 2}
}

const validBody = `{
  "resolution": {"spatial_step_km": 0.05, "time_window_seconds": 60},
  "segments": [{"segment_id": "S1", "segment_label": "Start", "from_km": 0, "to_km": 1, "width_m": 5, "direction": "UNI"}],
  "overlaps": [],
  "events": [
    {"name": "Full", "day": "Sat", "start_time": 420, "event_duration_minutes": 60,
     "runners": [{"runner_id": "1", "pace": 5}, {"runner_id": "2", "splits": "0-0.5:4;0.5-1:6", "start_offset": 30}]},
    {"name": "10K", "day": "sat", "start_time": "07:20", "event_duration_minutes": 60, "runners": []}
  ]
}`

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, 50).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("Then health reports ok", func() {
			w := do(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Then metrics are exposed in text format", func() {
			w := do(mux, "GET", "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "rundensity_")
		})

		Convey("Then stats are served as JSON", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st types.Stats
			So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
			So(st.Runs, ShouldEqual, 3)
		})

		Convey("Then unknown paths are not found", func() {
			So(do(mux, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are rejected", func() {
			So(do(mux, "DELETE", "/analyses", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestAnalysesHandler_Submit(t *testing.T) {
	Convey("Given the analyses endpoint", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When a valid scenario is posted", func() {
			w := do(mux, "POST", "/analyses", validBody)

			Convey("Then it is accepted and mapped to the domain model", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/analyses/run-1")
				So(deps.submitted, ShouldHaveLength, 1)

				var ack map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["run_id"], ShouldEqual, "run-1")
				So(ack["status"], ShouldEqual, "queued")

				sc := deps.submitted[0]
				So(sc.Resolution.BucketSeconds, ShouldEqual, 60)
				So(sc.Segments[0].Direction, ShouldEqual, model.DirectionUni)
				So(sc.Events[0].Day, ShouldEqual, "sat")
				So(sc.Events[1].StartMin, ShouldEqual, 440.0)
				So(sc.Events[0].Runners, ShouldHaveLength, 2)
				So(sc.Events[0].Runners[1].StartOffsetSec, ShouldEqual, 30.0)
				So(sc.Events[0].Problems, ShouldBeEmpty)
			})
		})

		Convey("When the scenario is a duplicate", func() {
			deps.duplicate = true
			deps.runs["run-1"] = repository.Run{ID: "run-1", Status: repository.StatusDone}
			w := do(mux, "POST", "/analyses", validBody)

			Convey("Then the earlier run is returned with 200 and its status", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(w.Body.String(), ShouldContainSubstring, `"status":"done"`)
			})
		})

		Convey("When the body is malformed", func() {
			w := do(mux, "POST", "/analyses", `{"segments": [}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, "POST", "/analyses", `{"courses": []}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the start time is missing", func() {
			body := strings.Replace(validBody, `"start_time": 420, `, ``, 1)
			w := do(mux, "POST", "/analyses", body)

			Convey("Then the run is queued and the event carries a schema problem", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.submitted, ShouldHaveLength, 1)
				problems := deps.submitted[0].Events[0].Problems
				So(problems, ShouldHaveLength, 1)
				So(errors.Is(problems[0], model.ErrSchema), ShouldBeTrue)
			})
		})

		Convey("When the service rejects the resolution", func() {
			deps.submitErr = errkind.Wrap("service.submit", model.ErrValidation, errors.New("spatial step"))
			w := do(mux, "POST", "/analyses", validBody)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "validation_error")
		})

		Convey("When the queue is full", func() {
			deps.submitErr = errkind.Op("service.submit", queue.ErrFull)
			w := do(mux, "POST", "/analyses", validBody)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(errorCode(w), ShouldEqual, "backpressure")
		})

		Convey("When the service rejects the resolution", func() {
			deps.submitErr = errkind.Wrap("service.submit", model.ErrValidation, errors.New("spatial step"))
			w := do(mux, "POST", "/analyses", validBody)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "validation_error")
		})
	})
}

const twoDayBody = `{
  "resolution": {"spatial_step_km": 0.05, "time_window_seconds": 60},
  "segments": [{"segment_id": "S1", "from_km": 0, "to_km": 1, "width_m": 5, "direction": "uni"}],
  "events": [
    {"name": "Sat", "day": "sat", "start_time": 420, "event_duration_minutes": 60,
     "runners": [{"runner_id": "1", "pace": 5}]},
    {"name": "Sun", "day": "sun", "start_time": 420, "event_duration_minutes": 60,
     "runners": [{"runner_id": "1", "pace": 5}, {"runner_id": "2", "pace": 0}]}
  ]
}`

func TestAnalysesHandler_DayScopedProblems(t *testing.T) {
	Convey("Given a two-day scenario with an unusable pace on one day", t, func() {
		deps := newMockDependencies()
		w := do(newMux(deps), "POST", "/analyses", twoDayBody)

		Convey("Then the submission is queued", func() {
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.submitted, ShouldHaveLength, 1)
		})

		Convey("Then only the bad day fails when analysed", func() {
			e, err := engine.New()
			So(err, ShouldBeNil)
			res, err := e.Run(context.Background(), deps.submitted[0])
			So(err, ShouldBeNil)

			sat, _ := res.Day("sat")
			sun, _ := res.Day("sun")
			So(sat.Err, ShouldBeNil)
			So(sat.Report, ShouldNotBeNil)
			So(errors.Is(sun.Err, model.ErrSchema), ShouldBeTrue)
			So(sun.Message(), ShouldContainSubstring, "runner 2")
		})
	})
}

func TestAnalysesHandler_Read(t *testing.T) {
	Convey("Given stored runs", t, func() {
		deps := newMockDependencies()
		submitted := time.Date(2025, 9, 14, 6, 0, 0, 0, time.UTC)
		deps.runs["done"] = repository.Run{
			ID:        "done",
			Status:    repository.StatusDone,
			Submitted: submitted,
			Started:   submitted,
			Finished:  submitted.Add(time.Second),
			Result: &engine.Result{
				Duration: 1500 * time.Millisecond,
				Days: []engine.DayResult{
					{Day: "sat", Err: errkind.Wrap("engine.day", model.ErrValidation, errors.New("duplicate bib"))},
				},
			},
		}
		mux := newMux(deps)

		Convey("When a run is fetched", func() {
			w := do(mux, "GET", "/analyses/done", "")

			Convey("Then its status and day errors are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["status"], ShouldEqual, "done")
				So(resp["duration_ms"], ShouldEqual, 1500.0)
				results := resp["results"].([]any)
				So(results, ShouldHaveLength, 1)
				So(results[0].(map[string]any)["error"], ShouldContainSubstring, "duplicate bib")
			})
		})

		Convey("When an unknown run is fetched", func() {
			w := do(mux, "GET", "/analyses/missing", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When runs are listed", func() {
			Convey("Then the default limit applies", func() {
				w := do(mux, "GET", "/analyses", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.limits, ShouldResemble, []int{20})
			})

			Convey("Then a limit above the maximum is rejected", func() {
				w := do(mux, "GET", "/analyses?limit=500", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "limit_exceeded")
			})

			Convey("Then a malformed limit is rejected", func() {
				So(do(mux, "GET", "/analyses?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a grid is requested", func() {
			Convey("Then CSV is returned", func() {
				w := do(mux, "GET", "/analyses/done/grid?day=sat", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Body.String(), ShouldContainSubstring, "sat,S1")
			})

			Convey("Then the day is required", func() {
				So(do(mux, "GET", "/analyses/done/grid", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then an unfinished run is a conflict", func() {
				deps.gridErr = fmt.Errorf("run x: %w", service.ErrNotReady)
				So(do(mux, "GET", "/analyses/done/grid?day=sat", "").Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then an unknown day is not found", func() {
				deps.gridErr = fmt.Errorf("run x: %w", service.ErrUnknownDay)
				w := do(mux, "GET", "/analyses/done/grid?day=mon", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "unknown_day")
			})
		})
	})
}
