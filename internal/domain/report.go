package domain

import (
	"bytes"
	"encoding/json"
)

// Report is the structured scoring output produced by the backend. It is
// read-only on the client: the raw payload is kept and re-emitted verbatim.
type Report struct {
	LLMReadinessScore      float64    `json:"llm_readiness_score"`
	LetterGrade            string     `json:"letter_grade"`
	LetterGradeDescriptive string     `json:"letter_grade_descriptive"`
	Categories             []Category `json:"categories"`
	TopCriticalItems       []string   `json:"top_5_critical_items"`
	TopWarnings            []string   `json:"top_5_warnings"`

	raw json.RawMessage
}

// Category is one scored section of a report.
type Category struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	MaxScore float64  `json:"max_score"`
	Metrics  []Metric `json:"metrics"`
}

// Metric is one scored item inside a category.
type Metric struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
}

type reportFields Report

// UnmarshalJSON decodes the known fields and keeps the raw payload.
// Fields whose shape differs from the typed view are left zero rather than failing.
func (r *Report) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	var f reportFields
	if err := json.Unmarshal(data, &f); err != nil {
		f = reportFields{}
		_ = json.Unmarshal(probe["llm_readiness_score"], &f.LLMReadinessScore)
		_ = json.Unmarshal(probe["letter_grade"], &f.LetterGrade)
	}
	*r = Report(f)
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON returns the original payload when there is one.
func (r Report) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(reportFields(r))
}

// Raw returns the payload exactly as received from the backend.
func (r *Report) Raw() json.RawMessage {
	return r.raw
}
