// Package config manages ctreport configuration.
//
// Configuration is assembled from three sources, in priority order:
//  1. CLI flags (highest priority)
//  2. An optional YAML configuration file (.ctreport)
//  3. Built-in defaults
//
// Design decision: Configuration is passed through the application via
// dependency injection rather than global state. This makes components
// testable in isolation and keeps the precedence rules in one place.
package config
