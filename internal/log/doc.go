// Package log provides logging with automatic masking of protected health
// information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic masking of patient identifiers (names, IDs, birth dates)
//   - Masking of album access tokens and authorization headers
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Why masking lives in the handler
//
// Pipeline stages log the instances they process, and instance metadata
// carries patient identifiers straight out of the DICOM tags. Masking in
// the handler means no call site can accidentally leak PHI into logs that
// may be shared or stored, even in verbose mode.
//
// # Usage
//
//	logger := log.NewPHILogger(os.Stderr, true) // verbose=true
//
//	logger.Info("decoded instance",
//	    "patient_name", meta.PatientName, // masked
//	    "instance_uid", meta.InstanceUID, // kept, UIDs are pseudonymous
//	)
//
//	slog.SetDefault(logger)
package log
