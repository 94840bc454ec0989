// Package logging assembles structured slog loggers and formatting helpers used
// across the cook pipeline.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so writer stages can tag log
// lines with the run ID, package, and stage. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
