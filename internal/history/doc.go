// Package history persists pipeline run outcomes to SQLite.
//
// Each completed run, including failed ones, becomes one row: status,
// counters, the aggregated confidence scores, and the full result as JSON.
// The store backs the runs CLI subcommand and lets operators audit what the
// system concluded for a given upload after the fact.
package history
