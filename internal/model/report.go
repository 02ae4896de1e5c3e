package model

import "time"

// ClinicalReport is the structured report synthesized from a Diagnosis.
// It is the terminal artifact of a pipeline run and is immutable once
// produced.
type ClinicalReport struct {
	// ClinicalHistory describes the relevant patient history, if the
	// generation backend provided one.
	ClinicalHistory string `json:"clinical_history,omitempty"`

	// Findings describes what the scan analysis showed.
	Findings string `json:"findings,omitempty"`

	// Impression is the clinical interpretation of the findings.
	Impression string `json:"impression,omitempty"`

	// Recommendations suggests follow-up or treatment.
	Recommendations string `json:"recommendations,omitempty"`

	// GeneratedAt records when the report was synthesized.
	GeneratedAt time.Time `json:"generated_at"`
}

// Empty reports whether no section of the report carries content. A fully
// empty report indicates a malformed generation backend response.
func (r *ClinicalReport) Empty() bool {
	return r.ClinicalHistory == "" && r.Findings == "" &&
		r.Impression == "" && r.Recommendations == ""
}
