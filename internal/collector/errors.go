package collector

import "fmt"

// CollectionError indicates that a bundle container itself was unreadable.
// Per-entry signature mismatches are never errors; they are filtered.
//
// Design decision: We use a typed error carrying the source name rather
// than a sentinel because callers report which container failed, and
// errors.As lets the boundary distinguish container failures from other
// pipeline errors.
type CollectionError struct {
	// Source is the name of the unreadable container.
	Source string

	// Err is the underlying read failure.
	Err error
}

// Error implements the error interface.
func (e *CollectionError) Error() string {
	return fmt.Sprintf("unreadable bundle %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *CollectionError) Unwrap() error {
	return e.Err
}
