package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/thomjeff/run-density/internal/adapters/repository"
	service "github.com/thomjeff/run-density/internal/app"
	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/internal/domain/types"
	"github.com/thomjeff/run-density/pkg/errkind"
)

// maxBodyBytes bounds a submitted scenario.
const maxBodyBytes = 64 << 20

// AnalysesHandler serves analysis runs.
type AnalysesHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies, maxLimit int) *AnalysesHandler {
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &AnalysesHandler{deps: deps, maxLimit: maxLimit}
}

type submitResponse struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type dayResponse struct {
	Day    string            `json:"day"`
	Error  string            `json:"error,omitempty"`
	Report *aggregate.Report `json:"report,omitempty"`
}

type runResponse struct {
	types.RunEntry
	DurationMs int64         `json:"duration_ms,omitempty"`
	Results    []dayResponse `json:"results,omitempty"`
}

// HandleSubmit handles POST /analyses.
func (h *AnalysesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	var req analysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, errkind.Wrap(op, ErrBadRequest, err))
		return
	}
	sc := req.scenario()
	id, dup, err := h.deps.Submit(r.Context(), sc)
	if err != nil {
		// problems with the scenario as a whole reject the request
		if code := kindCode(err); code != "" {
			writeError(w, http.StatusBadRequest, code, err)
			return
		}
		writeFailure(w, err)
		return
	}
	code, resp := http.StatusAccepted, submitResponse{RunID: id, Status: string(repository.StatusQueued)}
	if dup {
		code, resp.Duplicate = http.StatusOK, true
		if run, err := h.deps.Run(r.Context(), id); err == nil {
			resp.Status = string(run.Status)
		}
	}
	w.Header().Set("Location", "/analyses/"+id)
	writeJSON(w, code, resp)
}

// HandleList handles GET /analyses?limit=N.
func (h *AnalysesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list"
	n := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeFailure(w, errkind.New(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", errkind.New(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Runs(r.Context(), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGet handles GET /analyses/{id}.
func (h *AnalysesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := runResponse{RunEntry: service.Entry(&run)}
	if run.Result != nil {
		resp.DurationMs = run.Result.Duration.Milliseconds()
		for _, d := range run.Result.Days {
			resp.Results = append(resp.Results, dayResponse{Day: d.Day, Error: d.Message(), Report: d.Report})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGrid handles GET /analyses/{id}/grid?day=D and returns CSV.
func (h *AnalysesHandler) HandleGrid(w http.ResponseWriter, r *http.Request) {
	const op = "api.grid"
	day := r.URL.Query().Get("day")
	if day == "" {
		writeFailure(w, errkind.New(op, ErrBadRequest))
		return
	}
	var buf bytes.Buffer
	if err := h.deps.Grid(r.Context(), r.PathValue("id"), day, &buf); err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
