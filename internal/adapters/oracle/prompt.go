package oracle

import (
	"fmt"
	"strings"

	"github.com/okian/callscore/internal/domain/rubric"
)

// BuildPrompt spells the rubric out as completion instructions and asks for a
// JSON object keyed exactly by the rubric's dimension and parameter names.
func BuildPrompt(def rubric.Definition, req Request) string {
	var b strings.Builder

	b.WriteString("You are a sales call quality analyst. Score the call described below against the rubric.\n\n")
	if req.Category != "" {
		fmt.Fprintf(&b, "Call category: %s\n", req.Category)
		if focus := def.FocusFor(req.Category); len(focus) > 0 {
			fmt.Fprintf(&b, "Focus areas for this category: %s\n", strings.Join(focus, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Core quality dimensions (score each as an integer in its range):\n")
	for _, dim := range def.Core {
		fmt.Fprintf(&b, "- %s (0-%d): %s\n", dim.Name, dim.Max, dim.Description)
	}
	b.WriteString("\nMethodology parameters (score each as an integer in its range):\n")
	for _, dim := range def.Methodology {
		fmt.Fprintf(&b, "- %s (0-%d): %s\n", dim.Name, dim.Max, dim.Description)
	}

	b.WriteString("\nCall description:\n")
	b.WriteString(req.Description)
	b.WriteString("\n\nRespond with only a JSON object of this exact shape, no prose:\n")
	b.WriteString(`{"core_scores": {`)
	for i, dim := range def.Core {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: <int>", dim.Name)
	}
	b.WriteString(`}, "methodology_scores": {`)
	for i, dim := range def.Methodology {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: <int>", dim.Name)
	}
	b.WriteString("}}\n")

	return b.String()
}
