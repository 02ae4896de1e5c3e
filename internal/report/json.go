package report

import (
	"encoding/json"
	"io"

	"github.com/neuraxis/ctreport/internal/model"
)

// JSONWriter outputs results in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// version is stamped into the envelope so consumers can pin parsers.
	version string

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// WithVersion stamps the given application version into the envelope.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    "dev",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Envelope wraps the result with output metadata.
//
// Design decision: We wrap the result rather than modifying PipelineResult
// because this allows us to add output-specific fields without polluting
// the core data structure.
type Envelope struct {
	// Version is the application version that produced this result.
	Version string `json:"version"`

	// Result is the full pipeline result.
	Result *model.PipelineResult `json:"result"`
}

// Write outputs the full result in JSON format.
func (w *JSONWriter) Write(result *model.PipelineResult) (int, error) {
	env := &Envelope{
		Version: w.version,
		Result:  result,
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(env, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(env)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
