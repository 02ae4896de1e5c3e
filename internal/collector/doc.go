// Package collector discovers DICOM instance candidates inside an uploaded
// bundle.
//
// A bundle is an arbitrary mix of individual files and archives (zip, tar,
// gzip), possibly nested. The collector expands archives recursively up to a
// configured depth, sniffs each entry's leading bytes for the DICM
// signature, and returns only genuine image candidates in a stable,
// deduplicated order. Non-image entries (archive metadata, thumbnails,
// manifests) are silently filtered rather than passed downstream, so no
// decode work is wasted on them.
//
// Only an unreadable bundle container is an error; everything else is
// filtering.
package collector
