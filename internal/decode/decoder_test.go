package decode

import (
	"errors"
	"strings"
	"testing"

	"github.com/neuraxis/ctreport/internal/model"
)

// TestDecodeRejectsGarbage tests that unparseable bytes yield a DecodeError
// rather than a panic or a bare error.
func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "json payload", data: []byte(`{"studies": []}`)},
		{name: "truncated preamble", data: []byte("DICM")},
		{name: "random bytes", data: []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := New()
			_, err := d.Decode(model.RawInstance{Source: "bad.dcm", Data: tt.data})

			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if decErr.Source != "bad.dcm" {
				t.Errorf("expected source to carry over, got %q", decErr.Source)
			}
		})
	}
}

// TestDecodeErrorMessage tests the missing-capability error contract: the
// message must name the codec and the remediation.
func TestDecodeErrorMessage(t *testing.T) {
	t.Parallel()

	t.Run("missing capability names codec and remediation", func(t *testing.T) {
		t.Parallel()

		err := &DecodeError{
			Source:            "slice.dcm",
			TransferSyntax:    SyntaxJPEG2000,
			MissingCapability: true,
		}

		msg := err.Error()
		if !strings.Contains(msg, "JPEG 2000") {
			t.Errorf("expected codec name in message: %s", msg)
		}
		if !strings.Contains(msg, SyntaxJPEG2000) {
			t.Errorf("expected transfer syntax UID in message: %s", msg)
		}
		if !strings.Contains(msg, "install") {
			t.Errorf("expected remediation in message: %s", msg)
		}
	})

	t.Run("parse failure carries transfer syntax when known", func(t *testing.T) {
		t.Parallel()

		err := &DecodeError{
			Source:         "slice.dcm",
			TransferSyntax: SyntaxExplicitVRLittleEndian,
			Err:            errors.New("unexpected EOF"),
		}

		msg := err.Error()
		if !strings.Contains(msg, SyntaxExplicitVRLittleEndian) {
			t.Errorf("expected transfer syntax in message: %s", msg)
		}
		if !strings.Contains(msg, "unexpected EOF") {
			t.Errorf("expected underlying error in message: %s", msg)
		}
	})
}
