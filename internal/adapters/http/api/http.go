// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thomjeff/run-density/internal/adapters/mq/queue"
	"github.com/thomjeff/run-density/internal/adapters/repository"
	service "github.com/thomjeff/run-density/internal/app"
	"github.com/thomjeff/run-density/internal/domain/model"
	"github.com/thomjeff/run-density/internal/domain/types"
	"github.com/thomjeff/run-density/pkg/errkind"
	"github.com/thomjeff/run-density/pkg/metrics"
)

const defaultListLimit = 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a scenario; duplicate reports an identical earlier run.
	Submit(ctx context.Context, sc model.Scenario) (runID string, duplicate bool, err error)

	// Read operations expose runs and their results.
	Run(ctx context.Context, id string) (repository.Run, error)
	Runs(ctx context.Context, limit int) ([]types.RunEntry, error)
	Grid(ctx context.Context, id, day string, w io.Writer) error
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// Server wires HTTP routes for the business API.
type Server struct {
	analyses *AnalysesHandler
	stats    StatsProvider
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// page size of run listings.
func NewServer(deps Dependencies, stats StatsProvider, maxLimit int) *Server {
	return &Server{
		analyses: NewAnalysesHandler(deps, maxLimit),
		stats:    stats,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(handleHealth, "healthz"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.handleStats, "stats"))
	mux.HandleFunc("POST /analyses", MetricsMiddleware(s.analyses.HandleSubmit, "analyses"))
	mux.HandleFunc("GET /analyses", MetricsMiddleware(s.analyses.HandleList, "analyses"))
	mux.HandleFunc("GET /analyses/{id}", MetricsMiddleware(s.analyses.HandleGet, "analysis"))
	mux.HandleFunc("GET /analyses/{id}/grid", MetricsMiddleware(s.analyses.HandleGrid, "grid"))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetStats(r.Context()))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrUnknownDay):
		writeError(w, http.StatusNotFound, "unknown_day", err)
	case errors.Is(err, service.ErrNotReady):
		writeError(w, http.StatusConflict, "not_ready", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", errkind.Wrap("api", ErrBackpressure, err))
	case errors.Is(err, queue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		if code := kindCode(err); code != "" {
			writeError(w, http.StatusUnprocessableEntity, code, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// kindCode names the input error class of err, or returns empty.
func kindCode(err error) string {
	switch errkind.KindOf(err, model.ErrSchema, model.ErrConfiguration, model.ErrValidation) {
	case model.ErrSchema:
		return "schema_error"
	case model.ErrConfiguration:
		return "configuration_error"
	case model.ErrValidation:
		return "validation_error"
	}
	return ""
}
