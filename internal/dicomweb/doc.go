// Package dicomweb is a minimal QIDO-RS/WADO-RS client for album-scoped
// DICOM archives such as Kheops.
//
// Every request authenticates with a bearer album token. Listing endpoints
// return DICOM+JSON attribute sets keyed by hexadecimal tag; the client
// flattens the handful of tags the application needs into plain structs.
// Instance retrieval validates that the payload is an actual DICOM stream
// before handing it to the pipeline, because some archives answer file
// requests with JSON metadata.
package dicomweb
