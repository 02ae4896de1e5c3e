package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// Scheduler partitions a run's tensors into bounded batches, submits them to
// the model sequentially, and folds the per-image predictions into a
// series-level diagnosis.
type Scheduler struct {
	model     Model
	batchSize int
	threshold float64
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBatchSize bounds the number of tensors per model call.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithThreshold sets the mean probability above which a label is reported
// as an abnormality.
func WithThreshold(t float64) Option {
	return func(s *Scheduler) { s.threshold = t }
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler around m with the default batch size and
// abnormality threshold.
func NewScheduler(m Model, opts ...Option) *Scheduler {
	s := &Scheduler{
		model:     m,
		batchSize: config.DefaultMaxBatchSize,
		threshold: config.DefaultAbnormalThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Infer scores every tensor and returns the aggregated diagnosis together
// with the per-image predictions in input order. The aggregate depends only
// on the set of tensors, never on how they were partitioned into batches.
// Zero tensors is a fatal condition and returns ErrNoValidImages.
func (s *Scheduler) Infer(ctx context.Context, tensors []*model.NormalizedTensor) (*model.Diagnosis, []model.Prediction, error) {
	if len(tensors) == 0 {
		return nil, nil, ErrNoValidImages
	}

	preds := make([]model.Prediction, 0, len(tensors))
	for start := 0; start < len(tensors); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := start + s.batchSize
		if end > len(tensors) {
			end = len(tensors)
		}
		batch := tensors[start:end]

		s.logger.Debug("submitting inference batch",
			slog.Int("batch_start", start),
			slog.Int("batch_size", len(batch)))

		result, err := s.model.Predict(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("batch starting at image %d failed: %w", start, err)
		}
		if len(result.Predictions) != len(batch) {
			return nil, nil, fmt.Errorf("model returned %d predictions for a batch of %d",
				len(result.Predictions), len(batch))
		}
		preds = append(preds, result.Predictions...)
	}

	diag := s.aggregate(preds)
	s.logger.Info("inference complete",
		slog.Int("images", len(preds)),
		slog.Bool("abnormal", diag.Abnormal()))
	return diag, preds, nil
}

// aggregate folds per-image predictions into a diagnosis. Each label's
// confidence is the arithmetic mean of that label's probability across all
// images, so the result is independent of batch composition.
func (s *Scheduler) aggregate(preds []model.Prediction) *model.Diagnosis {
	means := make(map[string]float64)
	for _, p := range preds {
		for label, score := range p.Scores {
			means[label] += score
		}
	}
	labels := make([]string, 0, len(means))
	for label := range means {
		means[label] /= float64(len(preds))
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var abnormalities []string
	for _, label := range labels {
		if label == model.LabelNormal {
			continue
		}
		if means[label] > s.threshold {
			abnormalities = append(abnormalities, label)
		}
	}
	if len(abnormalities) == 0 {
		abnormalities = []string{model.LabelNormal}
	}

	findings := s.findings(preds, means, labels)
	return &model.Diagnosis{
		Abnormalities:    abnormalities,
		ConfidenceScores: means,
		Findings:         findings,
		Timestamp:        time.Now().UTC(),
	}
}

func (s *Scheduler) findings(preds []model.Prediction, means map[string]float64, labels []string) model.Findings {
	// The lead finding is the label with the highest mean probability,
	// ties broken by label order for determinism.
	lead := labels[0]
	for _, label := range labels[1:] {
		if means[label] > means[lead] {
			lead = label
		}
	}
	var peak float64
	for _, p := range preds {
		if v := p.Scores[lead]; v > peak {
			peak = v
		}
	}
	return model.Findings{
		MaxProbability:      peak,
		MaxProbabilityLabel: lead,
		MeanProbability:     means[lead],
		ImagesAnalyzed:      len(preds),
	}
}
