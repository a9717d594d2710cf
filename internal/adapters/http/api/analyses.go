// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/callscore/internal/adapters/repository"
	"github.com/okian/callscore/internal/domain/dedupe"
	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
)

// AnalysesDependencies defines the interface for call submission and reads.
type AnalysesDependencies interface {
	dedupe.Deduper
	SubmitManual(ctx context.Context, meta model.CallRecord, core, methodology map[string]int) (model.CallRecord, error)
	SubmitForScoring(ctx context.Context, meta model.CallRecord, description string) (model.CallRecord, bool)
	Analysis(ctx context.Context, id string) (model.CallRecord, error)
	ListAnalyses(ctx context.Context, f ListFilter) ([]ListEntry, error)
	AddFeedback(ctx context.Context, id string, fb model.Feedback) (model.CallRecord, error)
}

// AnalysesHandler handles call submission and analysis read requests.
type AnalysesHandler struct {
	deps         AnalysesDependencies
	maxListLimit int
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps AnalysesDependencies, maxListLimit int) *AnalysesHandler {
	if maxListLimit <= 0 {
		maxListLimit = defaultMaxListLimit
	}
	return &AnalysesHandler{deps: deps, maxListLimit: maxListLimit}
}

// HandleAnalyses handles POST /analyses and GET /analyses requests.
func (h *AnalysesHandler) HandleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleSubmit accepts a call submission. Manual sub-scores are analyzed
// synchronously; description-only submissions are queued for the oracle.
func (h *AnalysesHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first.
	if req.ClientRequestID != "" && h.deps.SeenAndRecord(r.Context(), req.ClientRequestID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if req.manual() {
		rec, err := h.deps.SubmitManual(r.Context(), req.meta(), req.CoreScores, req.MethodologyScores)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
		return
	}

	rec, ok := h.deps.SubmitForScoring(r.Context(), req.meta(), req.Description)
	if !ok {
		// Roll back the "seen" status since the submission was not accepted.
		if req.ClientRequestID != "" {
			h.deps.Unrecord(r.Context(), req.ClientRequestID)
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{ID: rec.ID, Status: rec.Status})
}

// handleList handles GET /analyses?rm=&category=&min_score=&limit= requests.
func (h *AnalysesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_analyses"
	q := r.URL.Query()

	f := ListFilter{
		RMName: q.Get("rm"),
		Limit:  h.maxListLimit,
	}
	if c := q.Get("category"); c != "" {
		if !rubric.ValidCategory(rubric.Category(c)) {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		f.Category = rubric.Category(c)
	}
	if v := q.Get("min_score"); v != "" {
		minScore, err := strconv.ParseFloat(v, 64)
		if err != nil || minScore < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		f.MinScore = minScore
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if limit < f.Limit {
			f.Limit = limit
		}
	}

	entries, err := h.deps.ListAnalyses(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if entries == nil {
		entries = []ListEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleAnalysisSubpath handles GET /analyses/{id} and
// POST /analyses/{id}/feedback requests.
func (h *AnalysesHandler) HandleAnalysisSubpath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if id, found := strings.CutSuffix(path, "/feedback"); found {
		h.handleFeedback(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	h.handleGet(w, r, path)
}

// handleGet handles GET /analyses/{id} requests.
func (h *AnalysesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, err := h.deps.Analysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleFeedback handles POST /analyses/{id}/feedback requests.
func (h *AnalysesHandler) handleFeedback(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.post_feedback"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, err := h.deps.AddFeedback(r.Context(), id, model.Feedback{
		Author:    strings.TrimSpace(req.Author),
		Comment:   req.Comment,
		Rating:    req.Rating,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
