package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// SeriesCollector expands uploaded containers into candidate instances.
type SeriesCollector interface {
	Collect(inputs []collector.Input) ([]model.RawInstance, error)
}

// InstanceDecoder turns one raw instance into pixel data plus metadata.
type InstanceDecoder interface {
	Decode(inst model.RawInstance) (*model.DecodedImage, error)
}

// ImageNormalizer scales and resamples one decoded image into a model
// input tensor.
type ImageNormalizer interface {
	Normalize(img *model.DecodedImage) (*model.NormalizedTensor, error)
}

// DiagnosisEngine scores all tensors and aggregates them into a diagnosis.
type DiagnosisEngine interface {
	Infer(ctx context.Context, tensors []*model.NormalizedTensor) (*model.Diagnosis, []model.Prediction, error)
}

// ReportSynthesizer turns the diagnosis into a structured clinical report.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, diag *model.Diagnosis) (*model.ClinicalReport, error)
}

// Orchestrator wires the five stages together and runs them in order.
type Orchestrator struct {
	collector   SeriesCollector
	decoder     InstanceDecoder
	normalizer  ImageNormalizer
	engine      DiagnosisEngine
	synthesizer ReportSynthesizer

	decodeWorkers int
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDecodeWorkers bounds the decode worker pool.
func WithDecodeWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.decodeWorkers = n
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator over the given stage implementations.
func New(sc SeriesCollector, dec InstanceDecoder, norm ImageNormalizer, eng DiagnosisEngine, syn ReportSynthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		collector:     sc,
		decoder:       dec,
		normalizer:    norm,
		engine:        eng,
		synthesizer:   syn,
		decodeWorkers: config.DefaultDecodeWorkers,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one full analysis over the inputs. The returned result is
// always populated, including on failure; the error is non-nil only for
// run-fatal conditions (collection failure, zero usable images, a model
// error, or a synthesis failure). Cancellation is honored at stage
// boundaries and inside the decode pool.
func (o *Orchestrator) Run(ctx context.Context, inputs []collector.Input) (*model.PipelineResult, error) {
	result := &model.PipelineResult{StartedAt: time.Now().UTC()}

	fail := func(err error) (*model.PipelineResult, error) {
		result.CompletedAt = time.Now().UTC()
		result.ResolveStatus()
		return result, err
	}

	o.logger.Info("pipeline run started",
		slog.String("stage", string(model.StageCollecting)),
		slog.Int("inputs", len(inputs)))

	instances, err := o.collector.Collect(inputs)
	if err != nil {
		result.AddFailure(failureSource(err), model.StageCollecting, err.Error())
		return fail(err)
	}
	result.InstancesCollected = len(instances)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	o.logger.Info("pipeline stage transition",
		slog.String("stage", string(model.StageDecoding)),
		slog.Int("instances", len(instances)))

	decoded := o.decodeAll(ctx, instances, result)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	o.logger.Info("pipeline stage transition",
		slog.String("stage", string(model.StageNormalizing)),
		slog.Int("decoded", len(decoded)))

	tensors := make([]*model.NormalizedTensor, 0, len(decoded))
	for _, img := range decoded {
		tensor, err := o.normalizer.Normalize(img)
		if err != nil {
			result.AddFailure(img.Source, model.StageNormalizing, err.Error())
			continue
		}
		tensors = append(tensors, tensor)
	}
	result.InstancesAnalyzed = len(tensors)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	o.logger.Info("pipeline stage transition",
		slog.String("stage", string(model.StageInferring)),
		slog.Int("tensors", len(tensors)))

	diag, _, err := o.engine.Infer(ctx, tensors)
	if err != nil {
		return fail(err)
	}
	result.Diagnosis = diag

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	o.logger.Info("pipeline stage transition",
		slog.String("stage", string(model.StageSynthesizing)),
		slog.Bool("abnormal", diag.Abnormal()))

	report, err := o.synthesizer.Synthesize(ctx, diag)
	if err != nil {
		return fail(err)
	}
	result.Report = report

	result.CompletedAt = time.Now().UTC()
	result.ResolveStatus()

	o.logger.Info("pipeline run finished",
		slog.String("status", string(result.Status)),
		slog.Int("collected", result.InstancesCollected),
		slog.Int("analyzed", result.InstancesAnalyzed),
		slog.Int("failures", len(result.Failures)),
		slog.Duration("elapsed", result.CompletedAt.Sub(result.StartedAt)))
	return result, nil
}

// decodeAll runs the decode pool and returns successfully decoded images in
// input order. Per-instance failures are recorded on the result, also in
// input order.
func (o *Orchestrator) decodeAll(ctx context.Context, instances []model.RawInstance, result *model.PipelineResult) []*model.DecodedImage {
	slots := make([]*model.DecodedImage, len(instances))
	errs := make([]error, len(instances))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.decodeWorkers)

	for i, inst := range instances {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			img, err := o.decoder.Decode(inst)
			mu.Lock()
			slots[i] = img
			errs[i] = err
			mu.Unlock()
			return nil
		})
	}
	// Worker errors are nil except on cancellation, which the caller
	// re-checks on its own context.
	_ = g.Wait()

	decoded := make([]*model.DecodedImage, 0, len(instances))
	for i, inst := range instances {
		switch {
		case errs[i] != nil:
			o.logger.Warn("instance excluded at decode",
				slog.String("source", inst.Source),
				slog.String("error", errs[i].Error()))
			result.AddFailure(inst.Source, model.StageDecoding, errs[i].Error())
		case slots[i] != nil:
			decoded = append(decoded, slots[i])
		}
	}
	return decoded
}

// failureSource pulls the offending source name out of a collection error
// when it carries one.
func failureSource(err error) string {
	var ce *collector.CollectionError
	if errors.As(err, &ce) {
		return ce.Source
	}
	return ""
}
