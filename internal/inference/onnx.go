package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/neuraxis/ctreport/internal/model"
)

// ONNXModel runs the abnormality classifier through an onnxruntime session.
// The session accepts a dynamic batch dimension, so one Run call scores the
// whole batch. Predict is serialized with a mutex because onnxruntime
// sessions are not safe for concurrent Run calls.
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	size    int
	labels  []string
	device  Device
	logger  *slog.Logger
	closed  bool
}

// NewONNXModel loads the classifier from modelPath and prepares a session on
// the process device. When preferAccelerator is set the accelerator provider
// is attached to the session options; a provider failure logs a warning and
// the session falls back to general-purpose compute instead of failing.
// libraryPath overrides the onnxruntime shared library location when not
// empty.
func NewONNXModel(modelPath, libraryPath string, inputSize int, preferAccelerator bool, logger *slog.Logger) (*ONNXModel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime environment: %w", err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	attached := false
	device := SelectDevice(preferAccelerator, func() error {
		if err := attachAccelerator(opts); err != nil {
			return err
		}
		attached = true
		return nil
	}, logger)

	// A prior run already selected the accelerator; attach it to this
	// session too. Failing here downgrades the process just like a failed
	// initial probe would.
	if device == DeviceAccelerator && !attached {
		if err := attachAccelerator(opts); err != nil {
			logger.Warn("accelerator provider unavailable for new session, downgrading to cpu",
				slog.String("error", err.Error()))
			downgradeToCPU()
			device = DeviceCPU
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", modelPath, err)
	}

	logger.Info("classifier session ready",
		slog.String("model", modelPath),
		slog.String("device", device.String()),
		slog.Int("input_size", inputSize))

	return &ONNXModel{
		session: session,
		size:    inputSize,
		labels:  []string{model.LabelNormal, model.LabelAbnormal},
		device:  device,
		logger:  logger,
	}, nil
}

func attachAccelerator(opts *ort.SessionOptions) error {
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cudaOpts.Destroy()
	return opts.AppendExecutionProviderCUDA(cudaOpts)
}

// downgradeToCPU pins the cached process device to CPU.
func downgradeToCPU() {
	processDevice.mu.Lock()
	defer processDevice.mu.Unlock()
	processDevice.device = DeviceCPU
}

// Device reports the execution device this session was built for.
func (m *ONNXModel) Device() Device {
	return m.device
}

// Predict scores the batch in a single session run and returns one
// prediction per tensor, in input order.
func (m *ONNXModel) Predict(ctx context.Context, batch []*model.NormalizedTensor) (*model.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrModelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := len(batch)
	flat := make([]float32, 0, n*m.size*m.size)
	for _, t := range batch {
		if t.Height != m.size || t.Width != m.size {
			return nil, fmt.Errorf("tensor %q has shape %dx%d, model expects %dx%d",
				t.Source, t.Height, t.Width, m.size, m.size)
		}
		flat = append(flat, t.Data...)
	}

	in, err := ort.NewTensor(ort.NewShape(int64(n), 1, int64(m.size), int64(m.size)), flat)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(len(m.labels))))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return nil, fmt.Errorf("inference run failed: %w", err)
	}

	raw := out.GetData()
	preds := make([]model.Prediction, 0, n)
	for i, t := range batch {
		logits := raw[i*len(m.labels) : (i+1)*len(m.labels)]
		probs := softmax(logits)

		scores := make(map[string]float64, len(m.labels))
		best := 0
		for j, label := range m.labels {
			scores[label] = probs[j]
			if probs[j] > probs[best] {
				best = j
			}
		}
		preds = append(preds, model.Prediction{
			Source:     t.Source,
			Label:      m.labels[best],
			Confidence: probs[best],
			Scores:     scores,
		})
	}
	return &model.BatchResult{Predictions: preds}, nil
}

// Close releases the session. Predict returns ErrModelClosed afterwards.
func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.session != nil {
		m.session.Destroy()
	}
}

func softmax(logits []float32) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - max))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
