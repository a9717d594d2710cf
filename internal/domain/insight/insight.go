// Package insight derives qualitative coaching feedback and an outcome
// prediction from rubric sub-scores.
//
// Like scoring, everything here is a pure transformation of its inputs plus
// the static rubric tables; there are no side effects and no I/O.
package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/callscore/internal/domain/rubric"
	"github.com/okian/callscore/internal/domain/scoring"
)

// Classification thresholds, in percent of a dimension's maximum.
const (
	strengthThreshold = 80 // >= is a strength/highlight
	gapThreshold      = 50 // < is a gap/missed opportunity
)

// Coaching selection parameters.
const (
	coachingCoreCount        = 3   // lowest core dimensions considered
	coachingMethodologyCount = 4   // lowest methodology parameters considered
	coachingCoreCutoff       = 0.7 // below 70% of max triggers a recommendation
	coachingMethodologyMin   = 7   // below 7/10 triggers a recommendation
	categoryCoachingMax      = 2
)

// List caps.
const (
	maxInsightEntries  = 5
	maxCoachingEntries = 6
)

// Outcome prediction labels.
const (
	OutcomeRegistrationExpected = "registration_expected"
	OutcomeFollowUpNeeded       = "follow_up_needed"
	OutcomeNeedsImprovement     = "needs_improvement"
)

// Insights groups the classified observations about a call.
type Insights struct {
	Strengths           []string `json:"strengths"`
	CriticalGaps        []string `json:"critical_gaps"`
	MissedOpportunities []string `json:"missed_opportunities"`
	BestMoments         []string `json:"best_moments"`
}

// Outcome is the categorical forecast with its heuristic confidence.
// Confidence intentionally reproduces the source formula, which can go
// negative at very low scores; see the scoring design notes.
type Outcome struct {
	LikelyResult string `json:"likely_result"`
	Confidence   int    `json:"confidence"`
	Reasoning    string `json:"reasoning"`
}

// Bundle is the full derived feedback for one analyzed call.
type Bundle struct {
	Insights            Insights `json:"key_insights"`
	Coaching            []string `json:"coaching_recommendations"`
	MethodologyCoaching []string `json:"methodology_coaching"`
	Outcome             Outcome  `json:"outcome_prediction"`
	Summary             string   `json:"call_summary"`
}

// Derive computes the insight bundle for the given clamped sub-scores and
// aggregates. The category may be empty; it only adds category-specific
// coaching when present.
func Derive(core, methodology map[string]int, def rubric.Definition, category rubric.Category, sum scoring.Summary) (Bundle, error) {
	if err := def.Validate(); err != nil {
		return Bundle{}, fmt.Errorf("derive: %w", err)
	}

	normCore, normMeth, err := scoring.Normalize(core, methodology, def)
	if err != nil {
		return Bundle{}, err
	}

	b := Bundle{
		Insights:            classify(normCore, normMeth, def),
		Coaching:            coreCoaching(normCore, def),
		MethodologyCoaching: methodologyCoaching(normMeth, def, category),
		Outcome:             predictOutcome(sum.OverallScore, normMeth),
		Summary:             summaryText(sum),
	}
	return b, nil
}

// classify places each dimension into the strength or gap band; mid-range
// scores (50-79%) are deliberately omitted from both lists.
func classify(core, methodology map[string]int, def rubric.Definition) Insights {
	var ins Insights
	for _, dim := range def.Core {
		v := core[dim.Name]
		pct := percent(v, dim.Max)
		switch {
		case pct >= strengthThreshold:
			ins.Strengths = append(ins.Strengths, fmt.Sprintf("Strong %s (%d/%d)", dim.Label(), v, dim.Max))
			ins.BestMoments = append(ins.BestMoments, fmt.Sprintf("Excellent execution of %s", dim.Label()))
		case pct < gapThreshold:
			ins.CriticalGaps = append(ins.CriticalGaps, fmt.Sprintf("Weak %s - scored only %d/%d", dim.Label(), v, dim.Max))
			ins.MissedOpportunities = append(ins.MissedOpportunities, fmt.Sprintf("Need to improve %s significantly", dim.Label()))
		}
	}
	for _, dim := range def.Methodology {
		v := methodology[dim.Name]
		pct := percent(v, dim.Max)
		switch {
		case pct >= strengthThreshold:
			ins.Strengths = append(ins.Strengths, fmt.Sprintf("Strong %s (%d/%d)", dim.Label(), v, dim.Max))
		case pct < gapThreshold:
			ins.CriticalGaps = append(ins.CriticalGaps, fmt.Sprintf("Weak %s - scored only %d/%d", dim.Label(), v, dim.Max))
			ins.MissedOpportunities = append(ins.MissedOpportunities, fmt.Sprintf("Leverage %s more effectively", dim.Label()))
		}
	}

	// The UI never shows an empty section: substitute fixed fillers.
	if len(ins.Strengths) == 0 {
		ins.Strengths = []string{"Some positive elements present", "Foundation established", "Room for significant growth"}
	}
	if len(ins.CriticalGaps) == 0 {
		ins.CriticalGaps = []string{"Minor improvements needed", "Fine-tune execution", "Enhance consistency"}
	}
	if len(ins.MissedOpportunities) == 0 {
		ins.MissedOpportunities = []string{"Optimize timing", "Deepen engagement", "Strengthen follow-through"}
	}
	if len(ins.BestMoments) == 0 {
		ins.BestMoments = []string{"Professional approach maintained", "Key points covered", "Participant engaged"}
	}

	ins.Strengths = capList(ins.Strengths, maxInsightEntries)
	ins.CriticalGaps = capList(ins.CriticalGaps, maxInsightEntries)
	ins.MissedOpportunities = capList(ins.MissedOpportunities, maxInsightEntries)
	ins.BestMoments = capList(ins.BestMoments, maxInsightEntries)
	return ins
}

// coreCoaching recommends work on the lowest-scoring core dimensions.
func coreCoaching(core map[string]int, def rubric.Definition) []string {
	var recs []string
	for _, dim := range lowest(def.Core, core, coachingCoreCount) {
		v := core[dim.Name]
		if float64(v) < float64(dim.Max)*coachingCoreCutoff {
			recs = append(recs, fmt.Sprintf("Focus on improving %s - currently at %d/%d", dim.Label(), v, dim.Max))
		}
	}
	if len(recs) == 0 {
		recs = []string{
			"Maintain current strengths",
			"Focus on consistency across all parameters",
			"Continue professional approach",
		}
	}
	return capList(recs, maxCoachingEntries)
}

// methodologyCoaching recommends work on the lowest-scoring methodology
// parameters, plus up to two category-specific recommendations for focus
// parameters scoring below the cutoff.
func methodologyCoaching(methodology map[string]int, def rubric.Definition, category rubric.Category) []string {
	var recs []string
	for _, dim := range lowest(def.Methodology, methodology, coachingMethodologyCount) {
		v := methodology[dim.Name]
		if v < coachingMethodologyMin {
			recs = append(recs, fmt.Sprintf("Strengthen %s - aim for 8+/10 (currently %d/%d)", dim.Label(), v, dim.Max))
		}
	}

	if category != "" {
		added := 0
		for _, name := range def.FocusFor(category) {
			if added >= categoryCoachingMax {
				break
			}
			v, ok := methodology[name]
			if !ok {
				// Focus lists may reference core dimensions; those are
				// handled by coreCoaching.
				continue
			}
			if v < coachingMethodologyMin {
				recs = append(recs, fmt.Sprintf("Critical for %s: Improve %s", category, rubric.Label(name)))
				added++
			}
		}
	}

	if len(recs) == 0 {
		recs = []string{
			"Integrate more principles framework references",
			"Use specific case studies with names",
			"Deepen goal exploration",
			"Get explicit commitments",
		}
	}
	return capList(recs, maxCoachingEntries)
}

// predictOutcome applies the three-way decision in strict precedence order.
func predictOutcome(overall float64, methodology map[string]int) Outcome {
	commitment := methodology["commitment_getting"]
	bhag := methodology["bhag_fine_tuning"]

	switch {
	case overall >= 80 && commitment >= coachingMethodologyMin && bhag >= coachingMethodologyMin:
		return Outcome{
			LikelyResult: OutcomeRegistrationExpected,
			Confidence:   minInt(95, roundInt(overall+10)),
			Reasoning:    "Strong overall performance with key commitments secured",
		}
	case overall >= 60:
		return Outcome{
			LikelyResult: OutcomeFollowUpNeeded,
			Confidence:   minInt(80, roundInt(overall)),
			Reasoning:    "Good foundation established, needs follow-up to secure commitment",
		}
	default:
		// Known quirk carried over from the source logic: the confidence
		// formula goes negative for very low overall scores.
		return Outcome{
			LikelyResult: OutcomeNeedsImprovement,
			Confidence:   minInt(70, roundInt(overall-10)),
			Reasoning:    "Significant gaps in methodology execution require attention",
		}
	}
}

// summaryText renders the executive summary line for the aggregates.
func summaryText(sum scoring.Summary) string {
	s := fmt.Sprintf("Call scored %.1f/100 with %.1f%% methodology compliance. ",
		sum.OverallScore, sum.MethodologyCompliance)
	switch sum.Effectiveness {
	case scoring.EffectivenessExcellent:
		return s + "Outstanding execution across all parameters with strong methodology adherence."
	case scoring.EffectivenessGood:
		return s + "Solid performance with good methodology implementation and room for refinement."
	case scoring.EffectivenessAverage:
		return s + "Acceptable execution but significant opportunities for improvement in key areas."
	default:
		return s + "Performance below standards - immediate coaching and practice required."
	}
}

// lowest returns the n lowest-scoring dimensions, ties broken by declaration
// order (stable sort).
func lowest(dims []rubric.Dimension, scores map[string]int, n int) []rubric.Dimension {
	sorted := make([]rubric.Dimension, len(dims))
	copy(sorted, dims)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i].Name] < scores[sorted[j].Name]
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func percent(v, max int) float64 {
	return float64(v) / float64(max) * 100
}

func capList(list []string, max int) []string {
	if len(list) > max {
		return list[:max]
	}
	return list
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
