// Package oracle defines the scoring oracle contract: any source of raw
// rubric sub-scores for a described call.
//
// The core treats the oracle as opaque. It performs no semantic validation of
// the returned scores; range handling belongs to the scoring domain.
package oracle

import (
	"context"

	"github.com/okian/callscore/internal/domain/rubric"
)

// Request describes one call to be scored.
type Request struct {
	// Description is the free-text account of the call.
	Description string
	// Category is the call category, used to shape the instructions.
	Category rubric.Category
}

// RawScores is the oracle's verbatim output: sub-score maps keyed by the
// rubric's dimension and parameter names. Values may be out of range or
// missing; callers clamp and default.
type RawScores struct {
	Core        map[string]int `json:"core_scores"`
	Methodology map[string]int `json:"methodology_scores"`
}

// Scorer is the capability interface for score sources. Implementations
// include the remote completion API client and the static fixture; a human
// score form satisfies the same contract upstream of this service.
type Scorer interface {
	Score(ctx context.Context, req Request) (RawScores, error)
}
