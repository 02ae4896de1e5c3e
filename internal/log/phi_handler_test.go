package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestPHIHandler_MasksSensitiveKeys tests that PHI keys are masked.
func TestPHIHandler_MasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{
			name:     "patient_name key is masked",
			key:      "patient_name",
			value:    "Doe^Jane",
			wantMask: true,
		},
		{
			name:     "Patient_Name key (mixed case) is masked",
			key:      "Patient_Name",
			value:    "Doe^Jane",
			wantMask: true,
		},
		{
			name:     "patient_id key is masked",
			key:      "patient_id",
			value:    "PID-000123",
			wantMask: true,
		},
		{
			name:     "birth_date key is masked",
			key:      "birth_date",
			value:    "19561102",
			wantMask: true,
		},
		{
			name:     "accession_number key is masked",
			key:      "accession_number",
			value:    "ACC-99881",
			wantMask: true,
		},
		{
			name:     "album_token key is masked",
			key:      "album_token",
			value:    "tkn-4f5a6b",
			wantMask: true,
		},
		{
			name:     "authorization key is masked",
			key:      "authorization",
			value:    "Bearer abc.def",
			wantMask: true,
		},
		{
			name:     "study_uid key is NOT masked",
			key:      "study_uid",
			value:    "1.2.840.113619.2.5.1",
			wantMask: false,
		},
		{
			name:     "source key is NOT masked",
			key:      "source",
			value:    "series/slice_012.dcm",
			wantMask: false,
		},
		{
			name:     "stage key is NOT masked",
			key:      "stage",
			value:    "decoding",
			wantMask: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewPHILogger(&buf, true)

			logger.Info("test message", tt.key, tt.value)

			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, but found in output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value %q in output, but not found: %s", MaskValue, output)
				}
			} else {
				if !strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be present in output, but not found: %s", tt.value, output)
				}
			}
		})
	}
}

// TestPHIHandler_MasksSensitiveValues tests value-pattern masking for
// non-sensitive keys.
func TestPHIHandler_MasksSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{name: "DICOM person name", value: "Doe^Jane^Q"},
		{name: "bearer token", value: "Bearer eyJhbGciOi.payload.sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewPHILogger(&buf, true)

			logger.Info("test message", "detail", tt.value)

			if strings.Contains(buf.String(), tt.value) {
				t.Errorf("expected value %q to be masked by pattern, output: %s", tt.value, buf.String())
			}
		})
	}
}

// TestPHIHandler_MasksGroups tests that attributes inside groups are masked.
func TestPHIHandler_MasksGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewPHILogger(&buf, true)

	logger.Info("decoded instance",
		slog.Group("metadata",
			"patient_name", "Doe^Jane",
			"modality", "CT",
		),
	)

	output := buf.String()
	if strings.Contains(output, "Doe^Jane") {
		t.Errorf("expected grouped patient_name to be masked, output: %s", output)
	}
	if !strings.Contains(output, "CT") {
		t.Errorf("expected modality to survive masking, output: %s", output)
	}
}

// TestPHIHandler_WithAttrs tests that attributes added via With are masked.
func TestPHIHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewPHILogger(&buf, true).With("patient_id", "PID-42")

	logger.Info("run started")

	if strings.Contains(buf.String(), "PID-42") {
		t.Errorf("expected With-attached patient_id to be masked, output: %s", buf.String())
	}
}

// TestPHILoggerLevels tests verbose flag behavior.
func TestPHILoggerLevels(t *testing.T) {
	t.Parallel()

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewPHILogger(&buf, true)

		logger.Debug("debug message")

		if !strings.Contains(buf.String(), "debug message") {
			t.Error("expected debug output in verbose mode")
		}
	})

	t.Run("non-verbose suppresses info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewPHILogger(&buf, false)

		logger.Info("info message")

		if buf.Len() != 0 {
			t.Errorf("expected no output at info level, got: %s", buf.String())
		}
	})
}
