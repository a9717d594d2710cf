// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/callscore/internal/domain/rubric"
)

// RubricDependencies defines the interface for rubric reads.
type RubricDependencies interface {
	Rubric(ctx context.Context) rubric.Definition
}

// RubricHandler serves the parameters guide payload.
type RubricHandler struct {
	deps RubricDependencies
}

// NewRubricHandler creates a new rubric handler.
func NewRubricHandler(deps RubricDependencies) *RubricHandler {
	return &RubricHandler{deps: deps}
}

// rubricDimension is the wire shape of one scored dimension.
type rubricDimension struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Max         int    `json:"max"`
	Description string `json:"description,omitempty"`
}

// rubricResponse is the wire shape of GET /rubric.
type rubricResponse struct {
	CoreDimensions        []rubricDimension   `json:"core_dimensions"`
	MethodologyParameters []rubricDimension   `json:"methodology_parameters"`
	CategoryFocus         map[string][]string `json:"category_focus"`
}

// HandleGetRubric handles GET /rubric requests.
func (h *RubricHandler) HandleGetRubric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	def := h.deps.Rubric(r.Context())
	resp := rubricResponse{
		CoreDimensions:        make([]rubricDimension, 0, len(def.Core)),
		MethodologyParameters: make([]rubricDimension, 0, len(def.Methodology)),
		CategoryFocus:         make(map[string][]string, len(def.Focus)),
	}
	for _, dim := range def.Core {
		resp.CoreDimensions = append(resp.CoreDimensions, rubricDimension{
			Name:        dim.Name,
			Label:       dim.Label(),
			Max:         dim.Max,
			Description: dim.Description,
		})
	}
	for _, dim := range def.Methodology {
		resp.MethodologyParameters = append(resp.MethodologyParameters, rubricDimension{
			Name:        dim.Name,
			Label:       dim.Label(),
			Max:         dim.Max,
			Description: dim.Description,
		})
	}
	for category, focus := range def.Focus {
		resp.CategoryFocus[string(category)] = focus
	}

	writeJSON(w, http.StatusOK, resp)
}
