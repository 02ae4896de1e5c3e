package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// phiKeys contains attribute keys that should always be masked.
// These keys carry protected health information or credentials.
var phiKeys = map[string]bool{
	// Patient identity
	"patient_name":       true,
	"patientname":        true,
	"patient_id":         true,
	"patientid":          true,
	"patient_birth_date": true,
	"birth_date":         true,
	"patient_sex":        true,
	"patient_age":        true,

	// Order / visit identifiers
	"accession_number": true,
	"accessionnumber":  true,
	"referring_physician": true,

	// Credentials
	"authorization": true,
	"album_token":   true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"secret":        true,
}

// phiPatterns contains regex patterns that indicate sensitive values.
// Values matching these patterns are masked regardless of key name.
var phiPatterns = []*regexp.Regexp{
	// DICOM person-name encoding (family^given^middle)
	regexp.MustCompile(`^[A-Za-z'\- ]+\^[A-Za-z'\- ^]+$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// MaskValue is the string used to replace masked values.
const MaskValue = "***MASKED***"

// PHIHandler wraps an slog.Handler to mask protected health information.
// It intercepts log records and masks attribute values that match PHI key
// names or value patterns before passing them to the underlying handler.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Every logger derived from it inherits the masking
type PHIHandler struct {
	// handler is the underlying slog handler that receives masked records.
	handler slog.Handler
}

// NewPHIHandler creates a new PHIHandler wrapping the given handler.
// All log attributes are masked before being passed to the underlying
// handler. If handler is nil, slog.Default().Handler() is used.
func NewPHIHandler(handler slog.Handler) *PHIHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &PHIHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *PHIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it to the underlying
// handler.
func (h *PHIHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are masked before being added.
func (h *PHIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &PHIHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *PHIHandler) WithGroup(name string) slog.Handler {
	return &PHIHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr masks a single attribute, recursively handling groups.
func (h *PHIHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if phiKeys[keyLower] || containsPHIKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		if isPHIValue(a.Value.String()) {
			return slog.String(a.Key, MaskValue)
		}
	}

	return a
}

// containsPHIKeyword checks if the key contains sensitive keywords.
// Note: We intentionally exclude the bare "id" keyword as it causes false
// positives (e.g., "study_id", "run_id" are pseudonymous identifiers).
// Specific patient-related patterns are covered by the phiKeys map.
func containsPHIKeyword(key string) bool {
	phiKeywords := []string{
		"patient", "birth", "password", "secret", "token", "auth",
	}

	for _, keyword := range phiKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isPHIValue checks if a value matches sensitive patterns.
func isPHIValue(value string) bool {
	for _, pattern := range phiPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewPHILogger creates a new slog.Logger with PHI masking over a text
// handler.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//
// Returns a *slog.Logger that can be used with slog.SetDefault() or passed
// to components that accept *slog.Logger.
func NewPHILogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewPHIHandler(textHandler))
}

// NewPHIJSONLogger creates a new slog.Logger with PHI masking that outputs
// JSON format. Useful for structured log aggregation.
func NewPHIJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	jsonHandler := slog.NewJSONHandler(w, opts)
	return slog.New(NewPHIHandler(jsonHandler))
}
