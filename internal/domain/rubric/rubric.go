// Package rubric defines the immutable scoring rubric for call analysis.
//
// The definition is constructed once at startup and passed explicitly into the
// scoring and insight components; nothing in this package holds mutable state.
package rubric

import (
	"fmt"
	"strings"
)

// Category identifies a call category. Categories only drive which
// methodology parameters are emphasized in hints and coaching; they never
// alter the scoring math.
type Category string

// Known call categories.
const (
	CategoryWelcome      Category = "Welcome Call"
	CategoryBHAG         Category = "BHAG Call"
	CategoryRegistration Category = "Registration Call"
	CategoryPitch        Category = "30 Sec Pitch"
	CategorySecondLevel  Category = "Second Level Call"
	CategoryFollowUp     Category = "Follow Up Call"
)

// Dimension describes a single scored dimension or parameter.
type Dimension struct {
	Name        string
	Max         int
	Description string
}

// Label returns the human-readable form of the dimension name,
// e.g. "needs_discovery" -> "Needs Discovery".
func (d Dimension) Label() string {
	return Label(d.Name)
}

// Neutral returns the documented neutral fallback value for a missing score:
// half of the declared maximum.
func (d Dimension) Neutral() int {
	return d.Max / 2
}

// Definition is the full rubric: core communication dimensions, the
// methodology-specific parameters, and per-category focus lists.
// Key order in the slices is significant; it provides the stable tie-break
// order for coaching selection.
type Definition struct {
	Core        []Dimension
	Methodology []Dimension
	Focus       map[Category][]string
}

// Validate checks the definition for structural problems. A rubric failing
// validation must not be used for scoring.
func (d Definition) Validate() error {
	if len(d.Core) == 0 {
		return fmt.Errorf("%w: no core dimensions", ErrInvalidDefinition)
	}
	if len(d.Methodology) == 0 {
		return fmt.Errorf("%w: no methodology parameters", ErrInvalidDefinition)
	}
	seen := make(map[string]struct{}, len(d.Core)+len(d.Methodology))
	for _, dim := range append(append([]Dimension{}, d.Core...), d.Methodology...) {
		if strings.TrimSpace(dim.Name) == "" {
			return fmt.Errorf("%w: dimension with empty name", ErrInvalidDefinition)
		}
		if dim.Max <= 0 {
			return fmt.Errorf("%w: dimension %q has non-positive max", ErrInvalidDefinition, dim.Name)
		}
		if _, dup := seen[dim.Name]; dup {
			return fmt.Errorf("%w: duplicate dimension %q", ErrInvalidDefinition, dim.Name)
		}
		seen[dim.Name] = struct{}{}
	}
	for cat, names := range d.Focus {
		for _, name := range names {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("%w: focus list for %q references unknown dimension %q",
					ErrInvalidDefinition, cat, name)
			}
		}
	}
	return nil
}

// CoreDimension returns the core dimension with the given name.
func (d Definition) CoreDimension(name string) (Dimension, bool) {
	for _, dim := range d.Core {
		if dim.Name == name {
			return dim, true
		}
	}
	return Dimension{}, false
}

// MethodologyParameter returns the methodology parameter with the given name.
func (d Definition) MethodologyParameter(name string) (Dimension, bool) {
	for _, dim := range d.Methodology {
		if dim.Name == name {
			return dim, true
		}
	}
	return Dimension{}, false
}

// FocusFor returns the ordered focus-parameter names for a category.
func (d Definition) FocusFor(cat Category) []string {
	return d.Focus[cat]
}

// Categories returns all categories with a focus list, in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryWelcome,
		CategoryBHAG,
		CategoryRegistration,
		CategoryPitch,
		CategorySecondLevel,
		CategoryFollowUp,
	}
}

// ValidCategory reports whether cat is one of the known call categories.
func ValidCategory(cat Category) bool {
	for _, c := range Categories() {
		if c == cat {
			return true
		}
	}
	return false
}

// Label converts a snake_case dimension name to a title-cased display label.
func Label(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Default returns the production rubric: five weighted core communication
// dimensions summing to 100 points and ten methodology parameters worth 10
// points each.
func Default() Definition {
	return Definition{
		Core: []Dimension{
			{Name: "rapport_building", Max: 20, Description: "Greetings, warmth, empathy, personalization, relatedness"},
			{Name: "needs_discovery", Max: 25, Description: "Strategic questions, probing, understanding challenges and goals"},
			{Name: "solution_presentation", Max: 25, Description: "Program benefits, community value, outcomes, social proof"},
			{Name: "objection_handling", Max: 15, Description: "Concern handling with empathy and solutions"},
			{Name: "closing_technique", Max: 15, Description: "Powerful invite, next steps, commitment getting"},
		},
		Methodology: []Dimension{
			{Name: "profile_understanding", Max: 10, Description: "Understanding experience, role, challenges, goals"},
			{Name: "credibility_building", Max: 10, Description: "Community, success stories, mentors, certification"},
			{Name: "principles_usage", Max: 10, Description: "Principles framework referenced by name"},
			{Name: "case_studies_usage", Max: 10, Description: "Specific participant success stories with names"},
			{Name: "gap_creation", Max: 10, Description: "Highlighting what's missing to reach the goal, creating urgency"},
			{Name: "bhag_fine_tuning", Max: 10, Description: "Big Hairy Audacious Goal exploration, making them dream bigger"},
			{Name: "urgency_creation", Max: 10, Description: "Limited spots, immediate action, cost of inaction"},
			{Name: "commitment_getting", Max: 10, Description: "Explicit commitments for attendance, participation, taking calls"},
			{Name: "contextualisation", Max: 10, Description: "Personalizing to the participant's specific situation and profile"},
			{Name: "excitement_creation", Max: 10, Description: "Creating enthusiasm about the transformation journey"},
		},
		Focus: map[Category][]string{
			CategoryWelcome: {
				"rapport_building", "profile_understanding", "credibility_building",
				"principles_usage", "case_studies_usage", "gap_creation",
				"bhag_fine_tuning", "commitment_getting", "urgency_creation",
				"contextualisation", "excitement_creation",
			},
			CategoryBHAG: {
				"bhag_fine_tuning", "gap_creation", "case_studies_usage",
				"commitment_getting", "principles_usage", "urgency_creation",
				"closing_technique",
			},
			CategoryRegistration: {
				"urgency_creation", "objection_handling", "commitment_getting",
				"solution_presentation", "credibility_building", "closing_technique",
			},
			CategoryPitch: {
				"profile_understanding", "gap_creation", "case_studies_usage",
				"urgency_creation", "commitment_getting", "excitement_creation",
			},
			CategorySecondLevel: {
				"credibility_building", "objection_handling", "solution_presentation",
				"case_studies_usage", "commitment_getting",
			},
			CategoryFollowUp: {
				"commitment_getting", "objection_handling", "urgency_creation",
				"case_studies_usage", "closing_technique",
			},
		},
	}
}
