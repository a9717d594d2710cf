// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/callscore/internal/domain/insight"
	"github.com/okian/callscore/internal/domain/rubric"
)

// Call record statuses.
const (
	// StatusPending marks a record awaiting asynchronous oracle scoring.
	StatusPending = "pending"
	// StatusScored marks a fully scored record.
	StatusScored = "scored"
	// StatusFallback marks a record scored with the fixed neutral fallback
	// after the remote oracle failed.
	StatusFallback = "scored_fallback"
)

// Analysis is the complete score record produced for one analyzed call.
// Derived fields are always recomputed from the clamped sub-scores; an
// Analysis is never mutated after creation.
type Analysis struct {
	OverallScore          float64            `json:"overall_score"`
	MethodologyCompliance float64            `json:"methodology_compliance"`
	CallEffectiveness     string             `json:"call_effectiveness"`
	CoreScores            map[string]int     `json:"core_scores"`
	MethodologyScores     map[string]int     `json:"methodology_scores"`
	KeyInsights           insight.Insights   `json:"key_insights"`
	OutcomePrediction     insight.Outcome    `json:"outcome_prediction"`
	Coaching              []string           `json:"coaching_recommendations"`
	MethodologyCoaching   []string           `json:"methodology_coaching"`
	CallSummary           string             `json:"call_summary"`
}

// Feedback is one admin review note attached to a call record.
type Feedback struct {
	Author    string    `json:"author"`
	Comment   string    `json:"comment"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// CallRecord is the envelope persisted per analyzed call. The nested
// Analysis holds the score record; the envelope carries call metadata.
type CallRecord struct {
	ID              string          `json:"id"`
	RMName          string          `json:"rm_name"`
	ParticipantName string          `json:"participant_name"`
	Category        rubric.Category `json:"call_category"`
	CallOutcome     string          `json:"call_outcome"`
	CallDate        string          `json:"call_date"`
	DurationMinutes int             `json:"duration_minutes"`
	Notes           string          `json:"notes,omitempty"`
	RecordingKey    string          `json:"recording_key,omitempty"`
	UploadedAt      time.Time       `json:"uploaded_at"`
	Status          string          `json:"status"`
	Analysis        *Analysis       `json:"analysis,omitempty"`
	Feedback        []Feedback      `json:"feedback,omitempty"`
}

// AnalysisJob is the unit of work queued for asynchronous oracle scoring.
type AnalysisJob struct {
	RecordID    string
	Description string
	Category    rubric.Category
	SubmittedAt time.Time
}
