// Package synthesis turns a series-level diagnosis into a structured
// clinical report.
//
// The prompt is built deterministically from the diagnosis fields alone, so
// the same diagnosis always produces the same prompt. Generation goes
// through a local language-model endpoint speaking the Ollama generate API;
// transient transport failures are retried with exponential backoff, while
// protocol-level failures (bad status, malformed payload) fail immediately.
// The raw model output is split into the four report sections by header
// matching. Any failure here is fatal for the run: a report is either
// produced whole or not at all.
package synthesis
