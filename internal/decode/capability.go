package decode

import "sync"

// Transfer syntax UIDs the decoder knows by name. Knowing the name is
// independent of being able to decode it; the registry decides the latter.
const (
	SyntaxImplicitVRLittleEndian = "1.2.840.10008.1.2"
	SyntaxExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	SyntaxExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
	SyntaxJPEGBaseline           = "1.2.840.10008.1.2.4.50"
	SyntaxJPEGExtended           = "1.2.840.10008.1.2.4.51"
	SyntaxJPEGLossless           = "1.2.840.10008.1.2.4.70"
	SyntaxJPEGLSLossless         = "1.2.840.10008.1.2.4.80"
	SyntaxJPEG2000Lossless       = "1.2.840.10008.1.2.4.90"
	SyntaxJPEG2000               = "1.2.840.10008.1.2.4.91"
	SyntaxRLELossless            = "1.2.840.10008.1.2.5"
)

// syntaxNames maps transfer syntax UIDs to human-readable codec names for
// error messages.
var syntaxNames = map[string]string{
	SyntaxImplicitVRLittleEndian: "Implicit VR Little Endian",
	SyntaxExplicitVRLittleEndian: "Explicit VR Little Endian",
	SyntaxExplicitVRBigEndian:    "Explicit VR Big Endian",
	SyntaxJPEGBaseline:           "JPEG Baseline (Process 1)",
	SyntaxJPEGExtended:           "JPEG Extended (Process 2 & 4)",
	SyntaxJPEGLossless:           "JPEG Lossless (Process 14, SV1)",
	SyntaxJPEGLSLossless:         "JPEG-LS Lossless",
	SyntaxJPEG2000Lossless:       "JPEG 2000 Lossless",
	SyntaxJPEG2000:               "JPEG 2000",
	SyntaxRLELossless:            "RLE Lossless",
}

// SyntaxName returns the codec name for a transfer syntax UID, or the UID
// itself when unknown.
func SyntaxName(uid string) string {
	if name, ok := syntaxNames[uid]; ok {
		return name
	}
	return uid
}

// capabilityRegistry tracks which transfer syntaxes this process can
// decode. It is process-scoped: deployments differ in which optional
// decoder backends are present, and the registry is the single place that
// knowledge lives.
//
// Design decision: An explicit registry object behind package functions,
// rather than ad hoc module-level flags, so tests can reset it and the
// init-once semantics are defined in one place.
type capabilityRegistry struct {
	mu   sync.RWMutex
	caps map[string]bool
}

// defaultCapabilities are the syntaxes decodable without optional backends:
// the native uncompressed encodings plus 8-bit JPEG baseline, which the
// standard image decoder handles.
func defaultCapabilities() map[string]bool {
	return map[string]bool{
		SyntaxImplicitVRLittleEndian: true,
		SyntaxExplicitVRLittleEndian: true,
		SyntaxExplicitVRBigEndian:    true,
		SyntaxJPEGBaseline:           true,
	}
}

var registry = &capabilityRegistry{caps: defaultCapabilities()}

// RegisterCapability marks a transfer syntax as decodable. Deployments
// that ship an optional decoder backend call this during startup.
func RegisterCapability(uid string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.caps[uid] = true
}

// HasCapability reports whether the process can decode the given transfer
// syntax.
func HasCapability(uid string) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.caps[uid]
}

// ResetCapabilities restores the default capability set. Intended for
// tests.
func ResetCapabilities() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.caps = defaultCapabilities()
}
