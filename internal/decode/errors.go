package decode

import "fmt"

// DecodeError describes why one instance could not be decoded. It is
// per-instance and recoverable: the pipeline records it and excludes the
// instance rather than aborting the run.
type DecodeError struct {
	// Source is the instance identifier for failure reporting.
	Source string

	// TransferSyntax is the detected transfer syntax UID, empty when the
	// file could not be parsed far enough to detect one.
	TransferSyntax string

	// MissingCapability is true when the failure is an unregistered
	// decode capability rather than corrupt data.
	MissingCapability bool

	// Err is the underlying parse error, nil for capability failures.
	Err error
}

// Error implements the error interface. Missing-capability failures name
// the codec and the remediation, because which codecs are available varies
// by deployment and a bare failure would leave operators guessing.
func (e *DecodeError) Error() string {
	if e.MissingCapability {
		return fmt.Sprintf(
			"cannot decode %q: transfer syntax %s (%s) requires a decode capability that is not registered; install the matching decoder backend and register it at startup",
			e.Source, SyntaxName(e.TransferSyntax), e.TransferSyntax,
		)
	}
	if e.TransferSyntax != "" {
		return fmt.Sprintf("cannot decode %q (transfer syntax %s): %v", e.Source, e.TransferSyntax, e.Err)
	}
	return fmt.Sprintf("cannot decode %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
