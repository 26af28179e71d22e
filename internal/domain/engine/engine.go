// Package engine runs the density and overlap analysis of a scenario, one
// isolated computation per day.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/internal/domain/course"
	"github.com/thomjeff/run-density/internal/domain/density"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/overlap"
	"github.com/thomjeff/run-density/internal/domain/zone"
	"github.com/thomjeff/run-density/pkg/errkind"
	"github.com/thomjeff/run-density/pkg/logger"
	"github.com/thomjeff/run-density/pkg/metrics"
)

// Default accepted start window: the whole day, in minutes.
const (
	DefaultStartMinMinutes = 0
	DefaultStartMaxMinutes = 24 * 60
)

// DefaultMaxDurationMinutes is the longest accepted event cutoff.
const DefaultMaxDurationMinutes = 48 * 60

// Engine analyses scenarios. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	thresholds         zone.Thresholds
	basis              aggregate.Basis
	stacked            bool
	segmentConcurrency int
	dayConcurrency     int
	startMin           float64
	startMax           float64
	maxDuration        float64
	log                logger.Logger

	classifier *zone.Classifier
	calculator *density.Calculator
	detector   *overlap.Detector
}

// New builds an Engine. It fails when thresholds or the start window are
// unusable.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds:     zone.DefaultThresholds(),
		basis:          aggregate.BasisStacked,
		stacked:        true,
		dayConcurrency: 4,
		startMin:       DefaultStartMinMinutes,
		startMax:       DefaultStartMaxMinutes,
		maxDuration:    DefaultMaxDurationMinutes,
		log:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := aggregate.ParseBasis(string(e.basis)); err != nil {
		return nil, err
	}
	if e.startMin > e.startMax {
		return nil, fmt.Errorf("start window [%v, %v] is inverted", e.startMin, e.startMax)
	}
	if !(e.maxDuration > 0) || math.IsInf(e.maxDuration, 0) {
		return nil, fmt.Errorf("max event duration %v min must be positive and finite", e.maxDuration)
	}
	c, err := zone.NewClassifier(e.thresholds)
	if err != nil {
		return nil, err
	}
	e.classifier = c
	var dopts []density.Option
	if e.segmentConcurrency > 0 {
		dopts = append(dopts, density.WithConcurrency(e.segmentConcurrency))
	}
	e.calculator = density.NewCalculator(dopts...)
	e.detector = overlap.NewDetector(c)
	return e, nil
}

// Classifier returns the zone classifier in use.
func (e *Engine) Classifier() *zone.Classifier { return e.classifier }

// DayResult is either a complete report or the error that stopped the day.
type DayResult struct {
	Day    string            `json:"day"`
	Report *aggregate.Report `json:"report,omitempty"`
	Err    error             `json:"-"`
}

// Message returns the day's failure message, or empty.
func (d DayResult) Message() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// Result holds one entry per day, in day order.
type Result struct {
	Days     []DayResult   `json:"days"`
	Duration time.Duration `json:"duration_ns"`
}

// Day returns the result of day, if analysed.
func (r *Result) Day(day string) (DayResult, bool) {
	for _, d := range r.Days {
		if d.Day == day {
			return d, true
		}
	}
	return DayResult{}, false
}

// Failed reports how many days ended with an error.
func (r *Result) Failed() int {
	n := 0
	for _, d := range r.Days {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Run analyses every day of sc concurrently. A failing day never stops the
// others; its error is kept on its DayResult. The returned error is non-nil
// only when the scenario as a whole cannot be analysed.
func (e *Engine) Run(ctx context.Context, sc model.Scenario) (*Result, error) {
	const op = "engine.run"
	started := time.Now()
	if err := sc.Resolution.Validate(); err != nil {
		return nil, errkind.Wrap(op, model.ErrValidation, err)
	}
	days := sc.Days()
	if len(days) == 0 {
		return nil, errkind.Wrap(op, model.ErrValidation, errors.New("scenario has no events"))
	}

	res := &Result{Days: make([]DayResult, len(days))}
	var g errgroup.Group
	g.SetLimit(e.dayConcurrency)
	for i, day := range days {
		g.Go(func() error {
			res.Days[i] = e.AnalyzeDay(ctx, day, sc.ForDay(day))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errkind.Op(op, err)
	}

	res.Duration = time.Since(started)
	e.log.Info(ctx, "scenario analysed",
		logger.Int("days", len(days)),
		logger.Int("failed_days", res.Failed()),
		logger.Duration("took", res.Duration))
	return res, nil
}

// AnalyzeDay runs the full pipeline for one day's slice of a scenario. A
// panic while analysing the day is returned as the day's error.
func (e *Engine) AnalyzeDay(ctx context.Context, day string, sc model.Scenario) DayResult {
	started := time.Now()
	rep, err := e.recoverDay(ctx, day, sc)
	took := float64(time.Since(started).Milliseconds())
	if err != nil {
		kind := errorKind(err)
		metrics.RecordDayAnalysed("failed", took)
		metrics.RecordErrorByComponent("engine", kind)
		e.log.Error(ctx, "day analysis failed", logger.String("day", day), logger.String("kind", kind), logger.Error(err))
		return DayResult{Day: day, Err: err}
	}
	metrics.RecordDayAnalysed("ok", took)
	return DayResult{Day: day, Report: rep}
}

func (e *Engine) recoverDay(ctx context.Context, day string, sc model.Scenario) (rep *aggregate.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("day %s: analysis panicked: %v", day, r)
		}
	}()
	return e.analyzeDay(ctx, day, sc)
}

func (e *Engine) analyzeDay(ctx context.Context, day string, sc model.Scenario) (*aggregate.Report, error) {
	const op = "engine.day"
	if err := e.validateEvents(sc.Events); err != nil {
		return nil, err
	}
	names := make([]string, len(sc.Events))
	for i, ev := range sc.Events {
		names[i] = ev.Name
	}
	crs, err := course.Load(day, sc.Segments, sc.Overlaps, names)
	if err != nil {
		return nil, err
	}
	for _, o := range crs.Disjoint() {
		e.log.Warn(ctx, "overlap sub-ranges do not intersect",
			logger.String("day", day),
			logger.String("segment", o.SegmentID),
			logger.String("event_a", o.EventA),
			logger.String("event_b", o.EventB))
	}

	pop := density.NewPopulation(sc.Events)
	tl, err := density.NewTimeline(pop, sc.Resolution)
	if err != nil {
		return nil, errkind.Wrap(op, model.ErrValidation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errkind.Op(op, err)
	}
	e.log.Debug(ctx, "timeline built",
		logger.String("day", day),
		logger.Int("buckets", tl.Buckets),
		logger.Int("samples_per_bucket", tl.SamplesPerBucket),
		logger.Int("runners", pop.Runners()))

	res, err := e.calculator.Compute(ctx, crs, pop, tl)
	if err != nil {
		return nil, err
	}
	recs, err := e.detector.Detect(ctx, crs, pop, res)
	if err != nil {
		return nil, err
	}
	rep, err := aggregate.Build(day, res, recs, e.classifier, aggregate.Options{Basis: e.basis, Stacked: e.stacked})
	if err != nil {
		return nil, errkind.Op(op, err)
	}

	metrics.RecordSegmentsAnalysed(len(rep.Summaries))
	metrics.RecordRunnersSimulated(pop.Runners())
	for _, s := range rep.Summaries {
		metrics.RecordSegmentPeakZone(s.PeakZone.String())
	}
	for _, r := range rep.Overlaps {
		metrics.RecordOverlap(r.Found)
	}
	e.log.Info(ctx, "day analysed",
		logger.String("day", day),
		logger.Int("segments", len(rep.Summaries)),
		logger.Int("overlaps", len(rep.Overlaps)),
		logger.Int("buckets", rep.Buckets))
	return rep, nil
}

// errorKind names the class of a day failure for metrics and logs.
func errorKind(err error) string {
	switch errkind.KindOf(err, model.ErrSchema, model.ErrConfiguration, model.ErrValidation) {
	case model.ErrSchema:
		return "schema"
	case model.ErrConfiguration:
		return "configuration"
	case model.ErrValidation:
		return "validation"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "internal"
}
