package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrInvalidMaxUploadSize is returned when the upload limit is not
	// positive. A zero limit would reject every upload.
	ErrInvalidMaxUploadSize = errors.New("invalid max upload size: must be positive")

	// ErrInvalidBatchSize is returned when the inference batch size is
	// not positive. A batch size of zero would make inference impossible.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidDecodeWorkers is returned when the decode pool size is
	// not positive.
	ErrInvalidDecodeWorkers = errors.New("invalid decode workers: must be positive")

	// ErrInvalidThreshold is returned when the abnormality threshold is
	// outside (0, 1). A threshold of 0 would assert every label; 1 would
	// assert none.
	ErrInvalidThreshold = errors.New("invalid abnormal threshold: must be between 0 and 1 exclusive")

	// ErrInvalidArchiveDepth is returned when the archive nesting bound
	// is below 1. Depth 1 means only top-level archives are expanded.
	ErrInvalidArchiveDepth = errors.New("invalid archive depth: must be at least 1")

	// ErrInvalidInputSize is returned when the model input edge length is
	// not positive.
	ErrInvalidInputSize = errors.New("invalid input size: must be positive")

	// ErrMissingGenerateURL is returned when no text-generation backend
	// URL is configured. Report synthesis cannot work without one.
	ErrMissingGenerateURL = errors.New("missing generation backend URL")

	// ErrInvalidGenerateRetries is returned when the synthesis retry
	// count is below 1. At least one attempt is always made.
	ErrInvalidGenerateRetries = errors.New("invalid generate retries: must be at least 1")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
