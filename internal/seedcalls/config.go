// Package seedcalls generates synthetic call submissions against a running
// service and verifies the resulting analyses.
package seedcalls

import "time"

// Config holds configuration for the seeding run.
type Config struct {
	BaseURL  string        // Base URL of the service
	NumCalls int           // Number of call submissions to generate
	Workers  int           // Number of concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Enable verbose logging
}

// Submission is the wire shape sent to POST /analyses.
type Submission struct {
	ClientRequestID   string         `json:"client_request_id,omitempty"`
	RMName            string         `json:"rm_name"`
	ParticipantName   string         `json:"participant_name"`
	CallCategory      string         `json:"call_category"`
	CallOutcome       string         `json:"call_outcome,omitempty"`
	CallDate          string         `json:"call_date"`
	DurationMinutes   int            `json:"duration_minutes"`
	Description       string         `json:"description,omitempty"`
	CoreScores        map[string]int `json:"core_scores,omitempty"`
	MethodologyScores map[string]int `json:"methodology_scores,omitempty"`
}

// AckResponse is the response from a queued submission.
type AckResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// ListEntry is the condensed analysis row returned by GET /analyses.
type ListEntry struct {
	ID                string  `json:"id"`
	RMName            string  `json:"rm_name"`
	CallCategory      string  `json:"call_category"`
	Status            string  `json:"status"`
	OverallScore      float64 `json:"overall_score"`
	CallEffectiveness string  `json:"call_effectiveness"`
}

// Stats holds run statistics.
type Stats struct {
	CallsGenerated  int
	CallsSubmitted  int
	CallsSuccessful int
	CallsDuplicate  int
	CallsFailed     int
	CallsVerified   int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
