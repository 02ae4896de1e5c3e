package model

import "time"

// Class labels produced by the detection model. The model emits one
// probability per label for every image; the scheduler aggregates them into
// a series-level Diagnosis.
const (
	LabelNormal   = "normal"
	LabelAbnormal = "abnormal"
)

// Prediction is the per-image output of one inference call: a probability
// for each abnormality label, keyed by label name.
type Prediction struct {
	// Source identifies the tensor this prediction belongs to.
	Source string `json:"source"`

	// Label is the highest-probability class for this image.
	Label string `json:"label"`

	// Confidence is the probability of Label.
	Confidence float64 `json:"confidence"`

	// Scores holds the full per-label probability distribution.
	Scores map[string]float64 `json:"scores"`
}

// BatchResult is the ordered output of one inference call. Predictions are
// listed in the same order as the tensors that were submitted, so callers
// can re-associate outputs with their source instances by position.
type BatchResult struct {
	Predictions []Prediction
}

// Diagnosis is the series-level aggregate over all successfully inferred
// images. Confidence per label is the arithmetic mean of the per-image
// probabilities for that label; the aggregate is independent of how the
// images were partitioned into batches.
type Diagnosis struct {
	// Abnormalities lists the labels whose aggregate confidence exceeded
	// the configured threshold. Contains only "normal" when nothing did.
	Abnormalities []string `json:"abnormalities"`

	// ConfidenceScores maps each label to its mean per-image confidence.
	ConfidenceScores map[string]float64 `json:"confidence_scores"`

	// Findings holds summary statistics of the model output.
	Findings Findings `json:"findings"`

	// Timestamp records when the diagnosis was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Findings summarizes the raw model output across the series.
type Findings struct {
	// MaxProbability is the highest single-image probability seen for any
	// label across the series.
	MaxProbability float64 `json:"max_probability"`

	// MaxProbabilityLabel is the label that produced MaxProbability.
	MaxProbabilityLabel string `json:"max_probability_label"`

	// MeanProbability is the mean over all per-image, per-label scores.
	MeanProbability float64 `json:"mean_probability"`

	// ImagesAnalyzed is the number of images that contributed.
	ImagesAnalyzed int `json:"images_analyzed"`
}

// Abnormal reports whether any abnormality label (other than "normal") was
// asserted for the series.
func (d *Diagnosis) Abnormal() bool {
	for _, label := range d.Abnormalities {
		if label != LabelNormal {
			return true
		}
	}
	return false
}
