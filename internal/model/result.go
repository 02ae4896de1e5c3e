package model

import "time"

// Stage identifies where in the pipeline a failure occurred.
type Stage string

// Pipeline stages in execution order.
const (
	StageCollecting   Stage = "collecting"
	StageDecoding     Stage = "decoding"
	StageNormalizing  Stage = "normalizing"
	StageInferring    Stage = "inferring"
	StageSynthesizing Stage = "synthesizing"
)

// RunStatus distinguishes the three caller-visible outcomes of a run.
type RunStatus string

// Run outcomes. A run that excluded some inputs but still produced a report
// is PartialSuccess; a run with no report is Failed.
const (
	StatusFullSuccess    RunStatus = "full_success"
	StatusPartialSuccess RunStatus = "partial_success"
	StatusFailed         RunStatus = "failed"
)

// PipelineFailure records one excluded input: which source failed, at which
// stage, and why. Failures accumulate for the whole run and are returned to
// the caller alongside the report so completeness can be judged.
type PipelineFailure struct {
	// Source is the upload filename, archive entry path, or remote
	// instance UID of the failed input.
	Source string `json:"source"`

	// Stage is the pipeline stage at which the input was excluded.
	Stage Stage `json:"stage"`

	// Reason is the human-readable failure description.
	Reason string `json:"reason"`
}

// PipelineResult is the complete outcome of one pipeline run. The failure
// list is present regardless of overall success, so callers can distinguish
// "fully succeeded", "succeeded with exclusions", and "failed".
type PipelineResult struct {
	// Status is the overall run outcome.
	Status RunStatus `json:"status"`

	// Report is the synthesized clinical report. Nil when Status is
	// StatusFailed.
	Report *ClinicalReport `json:"report,omitempty"`

	// Diagnosis is the aggregated series-level assessment. Nil when the
	// run failed before inference completed.
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`

	// Failures lists every input excluded during the run.
	Failures []PipelineFailure `json:"failures"`

	// InstancesCollected is the number of candidates that survived
	// collection, before decoding.
	InstancesCollected int `json:"instances_collected"`

	// InstancesAnalyzed is the number of images that reached inference.
	InstancesAnalyzed int `json:"instances_analyzed"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// AddFailure appends a failure record to the result.
func (r *PipelineResult) AddFailure(source string, stage Stage, reason string) {
	r.Failures = append(r.Failures, PipelineFailure{
		Source: source,
		Stage:  stage,
		Reason: reason,
	})
}

// ResolveStatus derives the final RunStatus from the presence of a report
// and the failure list.
func (r *PipelineResult) ResolveStatus() {
	switch {
	case r.Report == nil:
		r.Status = StatusFailed
	case len(r.Failures) > 0:
		r.Status = StatusPartialSuccess
	default:
		r.Status = StatusFullSuccess
	}
}
