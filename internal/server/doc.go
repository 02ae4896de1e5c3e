// Package server exposes the analysis pipeline over HTTP.
//
// One handler struct owns its collaborators: the pipeline runner, the
// optional album client, and the optional run history store. Uploads over
// the configured size limit are rejected before any decode work happens.
// Status codes follow the run outcome: 200 for full and partial success
// (the payload's status field distinguishes them), 422 when no usable
// images remain, 502 when report synthesis or the album backend fails, and
// 413 for oversized uploads.
package server
