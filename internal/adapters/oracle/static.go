package oracle

import (
	"context"

	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/internal/domain/scoring"
)

// StaticScorer returns fixed scores. It serves offline development and tests,
// and doubles as the neutral source when no remote oracle is configured.
type StaticScorer struct {
	core        map[string]int
	methodology map[string]int
	err         error
}

// StaticOption applies a configuration option to the StaticScorer.
type StaticOption func(*StaticScorer)

// WithScores fixes the returned sub-score maps.
func WithScores(core, methodology map[string]int) StaticOption {
	return func(s *StaticScorer) {
		s.core = core
		s.methodology = methodology
	}
}

// WithError makes every call fail with err. Used to exercise fallback paths.
func WithError(err error) StaticOption {
	return func(s *StaticScorer) {
		s.err = err
	}
}

// NewStaticScorer creates a static scorer. Without options it returns the
// neutral mid-range scores for def.
func NewStaticScorer(def rubric.Definition, opts ...StaticOption) *StaticScorer {
	core, methodology := scoring.Neutral(def)
	s := &StaticScorer{core: core, methodology: methodology}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the configured scores verbatim.
func (s *StaticScorer) Score(_ context.Context, _ Request) (RawScores, error) {
	if s.err != nil {
		return RawScores{}, s.err
	}
	core := make(map[string]int, len(s.core))
	for k, v := range s.core {
		core[k] = v
	}
	methodology := make(map[string]int, len(s.methodology))
	for k, v := range s.methodology {
		methodology[k] = v
	}
	return RawScores{Core: core, Methodology: methodology}, nil
}
