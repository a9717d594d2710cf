// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/callscore/internal/adapters/repository"
	"github.com/okian/callscore/internal/domain/dedupe"
	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/internal/domain/types"
)

// Default request handling limits.
const (
	defaultMaxListLimit   = 200
	defaultMaxUploadBytes = 40 << 20
)

// ListEntry mirrors the read shape returned by analysis listing queries.
type ListEntry = types.ListEntry

// ListFilter narrows listing queries.
type ListFilter = repository.Filter

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// SubmitManual scores a call synchronously from human-entered sub-scores.
	SubmitManual(ctx context.Context, meta model.CallRecord, core, methodology map[string]int) (model.CallRecord, error)

	// SubmitForScoring queues a description-only submission for asynchronous
	// oracle scoring. Returns false on backpressure.
	SubmitForScoring(ctx context.Context, meta model.CallRecord, description string) (model.CallRecord, bool)

	// Read operations over persisted call records.
	Analysis(ctx context.Context, id string) (model.CallRecord, error)
	ListAnalyses(ctx context.Context, f ListFilter) ([]ListEntry, error)

	// AddFeedback appends an admin review note to a call record.
	AddFeedback(ctx context.Context, id string, fb model.Feedback) (model.CallRecord, error)

	// Recording storage.
	SaveRecording(ctx context.Context, filename string, data []byte) (string, error)
	Recording(ctx context.Context, key string) ([]byte, error)

	// Rubric exposes the active rubric definition.
	Rubric(ctx context.Context) rubric.Definition

	// Summary computes the admin aggregate report.
	Summary(ctx context.Context) (types.SummaryReport, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	analysesHandler   *AnalysesHandler
	recordingsHandler *RecordingsHandler
	rubricHandler     *RubricHandler
	summaryHandler    *SummaryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{
		maxListLimit:   defaultMaxListLimit,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		analysesHandler:   NewAnalysesHandler(deps, cfg.maxListLimit),
		recordingsHandler: NewRecordingsHandler(deps, cfg.maxUploadBytes),
		rubricHandler:     NewRubricHandler(deps),
		summaryHandler:    NewSummaryHandler(deps),
	}
}

// serverConfig holds tunables applied through ServerOptions.
type serverConfig struct {
	maxListLimit   int
	maxUploadBytes int64
}

// ServerOption applies a configuration option to the server.
type ServerOption func(*serverConfig)

// WithMaxListLimit caps the number of records one listing request may return.
func WithMaxListLimit(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxListLimit = n
		}
	}
}

// WithMaxUploadBytes bounds the accepted recording upload size.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/rubric", MetricsMiddleware(s.rubricHandler.HandleGetRubric, "rubric"))
	mux.HandleFunc("/summary", MetricsMiddleware(s.summaryHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("/analyses", MetricsMiddleware(s.analysesHandler.HandleAnalyses, "analyses"))
	mux.HandleFunc("/analyses/", MetricsMiddleware(s.analysesHandler.HandleAnalysisSubpath, "analysis"))
	mux.HandleFunc("/recordings", MetricsMiddleware(s.recordingsHandler.HandleUpload, "recordings"))
	mux.HandleFunc("/recordings/", MetricsMiddleware(s.recordingsHandler.HandleDownload, "recording"))
}

// analysisRequest mirrors the wire schema for POST /analyses.
type analysisRequest struct {
	ClientRequestID   string         `json:"client_request_id,omitempty"`
	RMName            string         `json:"rm_name"`
	ParticipantName   string         `json:"participant_name"`
	CallCategory      string         `json:"call_category"`
	CallOutcome       string         `json:"call_outcome,omitempty"`
	CallDate          string         `json:"call_date"`
	DurationMinutes   int            `json:"duration_minutes"`
	Notes             string         `json:"notes,omitempty"`
	RecordingKey      string         `json:"recording_key,omitempty"`
	Description       string         `json:"description,omitempty"`
	CoreScores        map[string]int `json:"core_scores,omitempty"`
	MethodologyScores map[string]int `json:"methodology_scores,omitempty"`
}

// manual reports whether the request carries human-entered sub-scores.
func (a analysisRequest) manual() bool {
	return a.CoreScores != nil || a.MethodologyScores != nil
}

func (a analysisRequest) validate() error {
	switch {
	case strings.TrimSpace(a.RMName) == "":
		return errors.New("missing rm_name")
	case strings.TrimSpace(a.ParticipantName) == "":
		return errors.New("missing participant_name")
	case strings.TrimSpace(a.CallCategory) == "":
		return errors.New("missing call_category")
	case !rubric.ValidCategory(rubric.Category(a.CallCategory)):
		return errors.New("unknown call_category")
	case strings.TrimSpace(a.CallDate) == "":
		return errors.New("missing call_date")
	case a.DurationMinutes < 0:
		return errors.New("negative duration_minutes")
	}
	if _, err := time.Parse("2006-01-02", a.CallDate); err != nil {
		return errors.New("invalid call_date; must be YYYY-MM-DD")
	}
	if !a.manual() && strings.TrimSpace(a.Description) == "" {
		return errors.New("either sub-scores or a description is required")
	}
	return nil
}

// meta builds the record envelope carried by both submission paths.
func (a analysisRequest) meta() model.CallRecord {
	return model.CallRecord{
		RMName:          strings.TrimSpace(a.RMName),
		ParticipantName: strings.TrimSpace(a.ParticipantName),
		Category:        rubric.Category(a.CallCategory),
		CallOutcome:     a.CallOutcome,
		CallDate:        a.CallDate,
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		RecordingKey:    a.RecordingKey,
	}
}

// feedbackRequest mirrors the wire schema for POST /analyses/{id}/feedback.
type feedbackRequest struct {
	Author  string `json:"author"`
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

func (f feedbackRequest) validate() error {
	switch {
	case strings.TrimSpace(f.Author) == "":
		return errors.New("missing author")
	case strings.TrimSpace(f.Comment) == "":
		return errors.New("missing comment")
	case f.Rating < 1 || f.Rating > 5:
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}

type ackResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type uploadResponse struct {
	Key string `json:"key"`
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
