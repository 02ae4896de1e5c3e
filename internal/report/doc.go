// Package report renders pipeline results for humans and tools.
//
// JSON output targets programmatic consumers and mirrors the HTTP response
// payload; Markdown output targets people reading a run summary in a
// terminal or a pull request. Both implement the same Writer interface so
// the CLI can fan one result out to several destinations.
package report
