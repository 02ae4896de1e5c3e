// Package inference drives the abnormality-detection model.
//
// The scheduler gathers the run's normalized tensors, partitions them into
// bounded batches, submits each batch to the model in one call, and
// aggregates the per-image probabilities into a series-level diagnosis.
// Batch composition never changes the aggregate: the diagnosis confidence
// per label is the arithmetic mean over all images regardless of how they
// were partitioned.
//
// Execution device selection is process-wide, init-once state: the
// accelerator is preferred when configured, and an initialization failure
// downgrades the process to general-purpose compute for its remaining
// lifetime instead of aborting the run. Tests can reset the cached state.
//
// The production model is an ONNX classifier driven through
// yalue/onnxruntime_go; the Model interface keeps the scheduler testable
// without an onnxruntime installation.
package inference
