// Package pipeline orchestrates a full analysis run.
//
// A run moves through five stages in fixed order: collecting, decoding,
// normalizing, inferring, synthesizing. Collection and synthesis failures
// are fatal for the run; a decode or normalization failure excludes only
// the affected image and is recorded on the result, so a run can succeed
// partially. Decoding is the one concurrent stage: instances are decoded by
// a bounded worker pool and results are reassembled in input order before
// the next stage starts.
//
// The orchestrator depends on small per-stage interfaces so tests can
// substitute any stage. The production implementations live in the
// collector, decode, preprocess, inference, and synthesis packages.
package pipeline
