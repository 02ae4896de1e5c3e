// Package main provides the entry point for the ctreport CLI.
//
// ctreport analyzes brain CT series in DICOM format and produces a
// structured clinical report: it decodes and normalizes the images, runs an
// abnormality-detection model over them in batches, and synthesizes the
// findings into report prose through a local language model.
//
// Usage:
//
//	ctreport analyze <files-or-archives>
//	ctreport serve
//
// See --help for all available options.
package main

// main is the entry point for ctreport.
func main() {
	Execute()
}
