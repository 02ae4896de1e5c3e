package server

import "fmt"

// UploadTooLargeError rejects a payload that exceeds the configured upload
// limit. It names both the limit and the received size so clients do not
// have to guess how far over they were.
type UploadTooLargeError struct {
	// Limit is the configured maximum in bytes.
	Limit int64
	// Received is the payload size in bytes. Negative when the request
	// carried no Content-Length header (chunked transfer encoding).
	Received int64
}

// Error returns the error message with both sizes in megabytes.
func (e *UploadTooLargeError) Error() string {
	if e.Received < 0 {
		return fmt.Sprintf("upload too large: limit %d MB, size unknown",
			e.Limit/(1024*1024))
	}
	return fmt.Sprintf("upload too large: limit %d MB, received %.2f MB",
		e.Limit/(1024*1024), float64(e.Received)/(1024*1024))
}
