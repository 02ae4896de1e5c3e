// Package model defines the core data structures used throughout ctreport.
//
// This package contains the following main types:
//   - RawInstance: One DICOM file as received, before any parsing
//   - DecodedImage: Validated pixel data plus instance-level metadata
//   - NormalizedTensor: Model-ready fixed-shape input derived from one image
//   - Diagnosis: The series-level abnormality assessment
//   - ClinicalReport: The synthesized report returned to the caller
//   - PipelineResult: Report, diagnosis, and accumulated per-file failures
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (collector, decode, inference, report) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
