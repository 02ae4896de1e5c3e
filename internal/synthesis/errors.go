package synthesis

import "fmt"

// ReportGenerationError is the fatal error for the synthesis stage. It
// covers an unreachable model endpoint after retries, an empty completion,
// and a payload the client cannot parse.
type ReportGenerationError struct {
	// Reason describes what went wrong in operator terms.
	Reason string
	// Err is the underlying cause, when there is one.
	Err error
}

// Error returns the error message.
func (e *ReportGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("report generation failed: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ReportGenerationError) Unwrap() error {
	return e.Err
}
