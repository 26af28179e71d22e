package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/thomjeff/run-density/internal/adapters/loader"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/pace"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// analysisRequest mirrors the OpenAPI schema for POST /analyses. Field names
// follow the CSV and manifest columns, lower-cased.
type analysisRequest struct {
	Resolution resolutionRequest `json:"resolution"`
	Segments   []segmentRequest  `json:"segments"`
	Overlaps   []overlapRequest  `json:"overlaps"`
	Events     []eventRequest    `json:"events"`
}

type resolutionRequest struct {
	SpatialStepKM     float64 `json:"spatial_step_km"`
	TimeWindowSeconds int     `json:"time_window_seconds"`
	SamplesPerBucket  int     `json:"samples_per_bucket"`
}

type segmentRequest struct {
	ID        string  `json:"segment_id"`
	Label     string  `json:"segment_label"`
	FromKM    float64 `json:"from_km"`
	ToKM      float64 `json:"to_km"`
	WidthM    float64 `json:"width_m"`
	Direction string  `json:"direction"`
	Day       string  `json:"day"`
}

type overlapRequest struct {
	SegmentID string  `json:"seg_id"`
	Label     string  `json:"segment_label"`
	EventA    string  `json:"event_a"`
	EventB    string  `json:"event_b"`
	FromKMA   float64 `json:"from_km_a"`
	ToKMA     float64 `json:"to_km_a"`
	FromKMB   float64 `json:"from_km_b"`
	ToKMB     float64 `json:"to_km_b"`
	Direction string  `json:"direction"`
	WidthM    float64 `json:"width_m"`
}

type eventRequest struct {
	Name        string          `json:"name"`
	Day         string          `json:"day"`
	StartTime   json.RawMessage `json:"start_time"`
	DurationMin float64         `json:"event_duration_minutes"`
	DistanceKM  float64         `json:"distance_km"`
	Runners     []runnerRequest `json:"runners"`
}

type runnerRequest struct {
	ID          string  `json:"runner_id"`
	Pace        float64 `json:"pace"`
	StartOffset float64 `json:"start_offset"`
	Splits      string  `json:"splits"`
}

// scenario converts the request into the domain model. An unparsable start
// or an unusable pace is kept on its event as a schema error, so only that
// event's day fails; range checks are left to the engine.
func (req *analysisRequest) scenario() model.Scenario {
	const op = "api.request"
	sc := model.Scenario{
		Resolution: model.Resolution{
			SpatialStepKM:    req.Resolution.SpatialStepKM,
			BucketSeconds:    req.Resolution.TimeWindowSeconds,
			SamplesPerBucket: req.Resolution.SamplesPerBucket,
		},
		Segments: make([]model.Segment, len(req.Segments)),
		Overlaps: make([]model.Overlap, len(req.Overlaps)),
		Events:   make([]model.Event, 0, len(req.Events)),
	}
	for i, s := range req.Segments {
		sc.Segments[i] = model.Segment{
			ID:        s.ID,
			Label:     s.Label,
			FromKM:    s.FromKM,
			ToKM:      s.ToKM,
			WidthM:    s.WidthM,
			Direction: model.Direction(strings.ToLower(s.Direction)),
			Day:       strings.ToLower(s.Day),
		}
	}
	for i, o := range req.Overlaps {
		sc.Overlaps[i] = model.Overlap{
			SegmentID: o.SegmentID,
			Label:     o.Label,
			EventA:    o.EventA,
			EventB:    o.EventB,
			FromKMA:   o.FromKMA,
			ToKMA:     o.ToKMA,
			FromKMB:   o.FromKMB,
			ToKMB:     o.ToKMB,
			Direction: model.Direction(strings.ToLower(o.Direction)),
			WidthM:    o.WidthM,
		}
	}

	for _, e := range req.Events {
		ev := model.Event{
			Name:        e.Name,
			Day:         strings.ToLower(e.Day),
			DurationMin: e.DurationMin,
			DistanceKM:  e.DistanceKM,
			Runners:     make([]model.Runner, 0, len(e.Runners)),
		}
		start, err := startMinutes(e.StartTime)
		if err != nil {
			ev.Problems = append(ev.Problems, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("event %s: %w", e.Name, err)))
		}
		ev.StartMin = start
		for _, rr := range e.Runners {
			p, err := rr.profile()
			if err != nil {
				ev.Problems = append(ev.Problems, errkind.Wrap(op, model.ErrSchema, fmt.Errorf("event %s runner %s: %w", e.Name, rr.ID, err)))
				continue
			}
			ev.Runners = append(ev.Runners, model.Runner{Bib: rr.ID, StartOffsetSec: rr.StartOffset, Pace: p})
		}
		sc.Events = append(sc.Events, ev)
	}
	return sc
}

func (rr runnerRequest) profile() (pace.Profile, error) {
	if rr.Splits != "" {
		bands, err := loader.ParseSplits(rr.Splits)
		if err != nil {
			return pace.Profile{}, err
		}
		return pace.Splits(bands)
	}
	return pace.Constant(rr.Pace)
}

// startMinutes accepts a JSON number of minutes or a string in any form
// loader.ParseStart understands.
func startMinutes(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("start_time is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return loader.ParseStart(s)
}
