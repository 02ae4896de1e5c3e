package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".ctreport"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file structure. All fields are optional;
// zero values leave the corresponding Config defaults untouched.
type File struct {
	// MaxUploadSizeMB is the upload limit in megabytes.
	MaxUploadSizeMB int64 `yaml:"max_upload_size_mb"`

	// MaxBatchSize is the inference batch size.
	MaxBatchSize int `yaml:"max_batch_size"`

	// DecodeWorkers is the decode pool size.
	DecodeWorkers int `yaml:"decode_workers"`

	// AbnormalThreshold is the series-level assertion threshold.
	AbnormalThreshold float64 `yaml:"abnormal_threshold"`

	// ModelPath is the ONNX detection model path.
	ModelPath string `yaml:"model_path"`

	// ONNXLibraryPath is the onnxruntime shared library path.
	ONNXLibraryPath string `yaml:"onnx_library_path"`

	// Generate configures the text-generation backend.
	Generate struct {
		URL            string `yaml:"url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Retries        int    `yaml:"retries"`
	} `yaml:"generate"`

	// Album configures the remote album service.
	Album struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"album"`

	// ListenAddr is the HTTP API listen address.
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the run history directory.
	DataDir string `yaml:"data_dir"`
}

// LoadConfigFile loads configuration overrides from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether the
// config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .ctreport in the current directory
//  3. Look for .ctreport in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if
// not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		candidate := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Apply overlays the non-zero file values onto the Config.
// Flag values should be applied after this, so flags win over the file.
func (f *File) Apply(cfg *Config) {
	if f.MaxUploadSizeMB > 0 {
		cfg.MaxUploadSize = f.MaxUploadSizeMB * 1024 * 1024
	}
	if f.MaxBatchSize > 0 {
		cfg.MaxBatchSize = f.MaxBatchSize
	}
	if f.DecodeWorkers > 0 {
		cfg.DecodeWorkers = f.DecodeWorkers
	}
	if f.AbnormalThreshold > 0 {
		cfg.AbnormalThreshold = f.AbnormalThreshold
	}
	if f.ModelPath != "" {
		cfg.ModelPath = f.ModelPath
	}
	if f.ONNXLibraryPath != "" {
		cfg.ONNXLibraryPath = f.ONNXLibraryPath
	}
	if f.Generate.URL != "" {
		cfg.GenerateURL = f.Generate.URL
	}
	if f.Generate.Model != "" {
		cfg.GenerateModel = f.Generate.Model
	}
	if f.Generate.TimeoutSeconds > 0 {
		cfg.GenerateTimeout = time.Duration(f.Generate.TimeoutSeconds) * time.Second
	}
	if f.Generate.Retries > 0 {
		cfg.GenerateRetries = f.Generate.Retries
	}
	if f.Album.URL != "" {
		cfg.AlbumBaseURL = f.Album.URL
	}
	if f.Album.Token != "" {
		cfg.AlbumToken = f.Album.Token
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
		cfg.SaveRuns = true
	}
}
