package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values follow the original deployment defaults where applicable and
// are otherwise chosen for typical single-node hardware.
const (
	// DefaultMaxUploadSize limits a single upload request to 500MB.
	// A full brain CT series of uncompressed 512x512 16-bit slices is
	// well under this; anything larger is almost certainly not a series.
	DefaultMaxUploadSize = 500 * 1024 * 1024

	// DefaultMaxBatchSize of 8 tensors per inference call balances
	// accelerator memory use against per-call overhead. Larger batches
	// help on GPUs with headroom; the aggregate diagnosis is identical
	// for any batch size.
	DefaultMaxBatchSize = 8

	// DefaultDecodeWorkers bounds the concurrent decode pool. Decoding is
	// CPU-bound per file; four workers keep a typical host busy without
	// starving the inference stage.
	DefaultDecodeWorkers = 4

	// DefaultAbnormalThreshold is the aggregate confidence above which an
	// abnormality label is asserted for the series.
	DefaultAbnormalThreshold = 0.5

	// DefaultMaxArchiveDepth bounds recursive expansion of nested
	// archives. Legitimate exports nest at most one level (zip of
	// folders); the bound exists to stop pathological nesting from
	// causing unbounded work.
	DefaultMaxArchiveDepth = 3

	// DefaultInputSize is the spatial edge length of the detection
	// model's fixed input shape (256x256 single-channel).
	DefaultInputSize = 256

	// DefaultGenerateURL is the local Ollama endpoint used for report
	// synthesis.
	DefaultGenerateURL = "http://localhost:11434"

	// DefaultGenerateModel is the text-generation model name.
	DefaultGenerateModel = "llama3"

	// DefaultGenerateTimeout bounds one generation call. Report synthesis
	// is a single non-streaming call, so this is the whole budget.
	DefaultGenerateTimeout = 120 * time.Second

	// DefaultGenerateRetries is the number of attempts for a generation
	// call that fails at the transport level. Backoff doubles between
	// attempts starting from one second.
	DefaultGenerateRetries = 3

	// DefaultListenAddr is the HTTP API listen address.
	DefaultListenAddr = ":8080"

	// DefaultRequestTimeout is the caller-facing deadline for one
	// inference request, covering the whole pipeline run.
	DefaultRequestTimeout = 10 * time.Minute

	// DefaultModelPath is the ONNX detection model location relative to
	// the working directory.
	DefaultModelPath = "models/brain_ct.onnx"

	// AppName is the application name used for XDG directory paths.
	AppName = "ctreport"
)

// Config holds all configuration options for ctreport.
// This struct is populated from CLI flags and an optional config file, and
// passed through the application via dependency injection.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., InferenceConfig, SynthesisConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// MaxUploadSize is the maximum accepted upload payload in bytes.
	// Oversized uploads are rejected before any decode work is attempted.
	MaxUploadSize int64

	// MaxBatchSize is the maximum number of tensors submitted to the
	// detection model in one inference call.
	MaxBatchSize int

	// DecodeWorkers is the size of the concurrent decode pool.
	DecodeWorkers int

	// AbnormalThreshold is the aggregate confidence above which an
	// abnormality label is asserted.
	AbnormalThreshold float64

	// MaxArchiveDepth is the maximum nesting depth for archive expansion.
	MaxArchiveDepth int

	// InputSize is the spatial edge length of the model input shape.
	InputSize int

	// ModelPath is the path to the ONNX detection model.
	ModelPath string

	// ONNXLibraryPath optionally points at the onnxruntime shared
	// library. Empty means the platform default search path.
	ONNXLibraryPath string

	// PreferAccelerator selects the accelerator execution provider when
	// available. When initialization fails the scheduler degrades to
	// general-purpose compute instead of aborting.
	PreferAccelerator bool

	// GenerateURL is the base URL of the text-generation backend.
	GenerateURL string

	// GenerateModel is the generation model name.
	GenerateModel string

	// GenerateTimeout bounds one generation call.
	GenerateTimeout time.Duration

	// GenerateRetries is the number of transport-level retry attempts
	// for report synthesis.
	GenerateRetries int

	// AlbumBaseURL is the remote album (DICOMweb) endpoint. Empty
	// disables album retrieval.
	AlbumBaseURL string

	// AlbumToken is the bearer token for album access.
	AlbumToken string

	// ListenAddr is the HTTP API listen address for serve mode.
	ListenAddr string

	// RequestTimeout is the overall per-request deadline for a run.
	RequestTimeout time.Duration

	// DataDir is the directory for the run history database. When empty,
	// runs are not persisted. Defaults to the XDG data directory when
	// persistence is requested without an explicit path.
	DataDir string

	// SaveRuns indicates whether completed runs are stored in the run
	// history database.
	SaveRuns bool

	// JSONReport enables JSON report output instead of the human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. When set, the
	// report is written to this file instead of stdout.
	ReportFile string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// Inputs is the list of local files or archives to analyze.
	Inputs []string

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .ctreport in the current directory and then in
	// the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero (sizes, timeouts, URLs).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxUploadSize:     DefaultMaxUploadSize,
		MaxBatchSize:      DefaultMaxBatchSize,
		DecodeWorkers:     DefaultDecodeWorkers,
		AbnormalThreshold: DefaultAbnormalThreshold,
		MaxArchiveDepth:   DefaultMaxArchiveDepth,
		InputSize:         DefaultInputSize,
		ModelPath:         DefaultModelPath,
		PreferAccelerator: true,
		GenerateURL:       DefaultGenerateURL,
		GenerateModel:     DefaultGenerateModel,
		GenerateTimeout:   DefaultGenerateTimeout,
		GenerateRetries:   DefaultGenerateRetries,
		ListenAddr:        DefaultListenAddr,
		RequestTimeout:    DefaultRequestTimeout,
	}
}

// XDGDataDir returns the XDG data directory for ctreport.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/ctreport
// On macOS: ~/Library/Application Support/ctreport
// On Windows: %LOCALAPPDATA%\ctreport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ctreport.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any pipeline work begins.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.MaxUploadSize <= 0 {
		return ErrInvalidMaxUploadSize
	}

	if c.MaxBatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.DecodeWorkers <= 0 {
		return ErrInvalidDecodeWorkers
	}

	if c.AbnormalThreshold <= 0 || c.AbnormalThreshold >= 1 {
		return ErrInvalidThreshold
	}

	if c.MaxArchiveDepth < 1 {
		return ErrInvalidArchiveDepth
	}

	if c.InputSize <= 0 {
		return ErrInvalidInputSize
	}

	if c.GenerateURL == "" {
		return ErrMissingGenerateURL
	}

	if c.GenerateRetries < 1 {
		return ErrInvalidGenerateRetries
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
