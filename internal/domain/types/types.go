// Package types contains read-model types shared between the service and the
// HTTP API.
package types

// ListEntry is the condensed row returned by call listing queries.
type ListEntry struct {
	ID                    string  `json:"id"`
	RMName                string  `json:"rm_name"`
	ParticipantName       string  `json:"participant_name"`
	CallCategory          string  `json:"call_category"`
	CallDate              string  `json:"call_date"`
	Status                string  `json:"status"`
	OverallScore          float64 `json:"overall_score"`
	MethodologyCompliance float64 `json:"methodology_compliance"`
	CallEffectiveness     string  `json:"call_effectiveness"`
	LikelyResult          string  `json:"likely_result"`
}

// CategoryStats aggregates performance per call category.
type CategoryStats struct {
	Category      string  `json:"call_category"`
	Count         int     `json:"count"`
	AvgScore      float64 `json:"avg_score"`
	AvgCompliance float64 `json:"avg_compliance"`
}

// ParameterStat aggregates one methodology parameter across calls.
type ParameterStat struct {
	Parameter string  `json:"parameter"`
	AvgScore  float64 `json:"avg_score"`
	Max       int     `json:"max"`
}

// SummaryReport is the admin dashboard aggregate payload.
type SummaryReport struct {
	TotalCalls     int             `json:"total_calls"`
	ActiveRMs      int             `json:"active_rms"`
	AvgScore       float64         `json:"avg_score"`
	AvgCompliance  float64         `json:"avg_compliance"`
	ByCategory     []CategoryStats `json:"by_category"`
	ParameterStats []ParameterStat `json:"parameter_stats"`
}
