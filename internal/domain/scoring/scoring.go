// Package scoring computes aggregate quality scores from rubric sub-scores.
//
// Score is a pure function: it clamps its inputs into the rubric's declared
// ranges, substitutes neutral defaults for missing keys, and never fails for
// well-formed input.
package scoring

import (
	"fmt"

	"github.com/okian/callscore/internal/domain/rubric"
)

// Fixed weighting of core communication skills over methodology technique.
const (
	coreWeight        = 0.6
	methodologyWeight = 0.4
)

// Effectiveness labels, from highest band to lowest.
const (
	EffectivenessExcellent        = "Excellent"
	EffectivenessGood             = "Good"
	EffectivenessAverage          = "Average"
	EffectivenessNeedsImprovement = "Needs Improvement"
)

// Effectiveness band thresholds (inclusive lower bounds).
const (
	excellentThreshold = 85
	goodThreshold      = 70
	averageThreshold   = 50
)

// Summary holds the aggregates computed from one set of sub-scores.
type Summary struct {
	// OverallScore is the 60/40 weighted blend of the core and methodology
	// totals, in [0,100].
	OverallScore float64

	// MethodologyCompliance is the methodology total interpreted as a
	// percentage; the ten parameters cap at 10 points each so the sum is
	// already scaled 0-100.
	MethodologyCompliance float64

	// Effectiveness is the categorical band for OverallScore.
	Effectiveness string
}

// Score computes the aggregates for the given sub-scores under def.
// Missing keys fall back to the dimension's neutral default and out-of-range
// values are clamped; the only error condition is a structurally invalid
// rubric definition.
func Score(core, methodology map[string]int, def rubric.Definition) (Summary, error) {
	if err := def.Validate(); err != nil {
		return Summary{}, fmt.Errorf("score: %w", err)
	}

	coreTotal := 0
	for _, dim := range def.Core {
		coreTotal += clampedValue(core, dim)
	}
	methodologyTotal := 0
	for _, dim := range def.Methodology {
		methodologyTotal += clampedValue(methodology, dim)
	}

	overall := float64(coreTotal)*coreWeight + float64(methodologyTotal)*methodologyWeight
	return Summary{
		OverallScore:          overall,
		MethodologyCompliance: float64(methodologyTotal),
		Effectiveness:         EffectivenessLabel(overall),
	}, nil
}

// Normalize returns clamped copies of the sub-score maps with every rubric
// key present, suitable for storing on a score record. Keys not declared in
// the rubric are dropped.
func Normalize(core, methodology map[string]int, def rubric.Definition) (map[string]int, map[string]int, error) {
	if err := def.Validate(); err != nil {
		return nil, nil, fmt.Errorf("normalize: %w", err)
	}
	normCore := make(map[string]int, len(def.Core))
	for _, dim := range def.Core {
		normCore[dim.Name] = clampedValue(core, dim)
	}
	normMeth := make(map[string]int, len(def.Methodology))
	for _, dim := range def.Methodology {
		normMeth[dim.Name] = clampedValue(methodology, dim)
	}
	return normCore, normMeth, nil
}

// Neutral returns the all-neutral sub-score maps for def: every dimension at
// half of its maximum. Used for the fixed fallback record when the upstream
// scorer fails entirely.
func Neutral(def rubric.Definition) (map[string]int, map[string]int) {
	core := make(map[string]int, len(def.Core))
	for _, dim := range def.Core {
		core[dim.Name] = dim.Neutral()
	}
	methodology := make(map[string]int, len(def.Methodology))
	for _, dim := range def.Methodology {
		methodology[dim.Name] = dim.Neutral()
	}
	return core, methodology
}

// EffectivenessLabel maps an overall score to its categorical band.
// Thresholds are inclusive on the lower bound of each band.
func EffectivenessLabel(overall float64) string {
	switch {
	case overall >= excellentThreshold:
		return EffectivenessExcellent
	case overall >= goodThreshold:
		return EffectivenessGood
	case overall >= averageThreshold:
		return EffectivenessAverage
	default:
		return EffectivenessNeedsImprovement
	}
}

// clampedValue reads the value for dim from scores, substituting the neutral
// default when absent and clamping into [0, max] otherwise.
func clampedValue(scores map[string]int, dim rubric.Dimension) int {
	v, ok := scores[dim.Name]
	if !ok {
		return dim.Neutral()
	}
	if v < 0 {
		return 0
	}
	if v > dim.Max {
		return dim.Max
	}
	return v
}
