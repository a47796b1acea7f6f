// Package logging assembles structured slog loggers and formatting helpers used
// across dynwatch.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so pipeline code automatically tags log lines
// with the cycle ID, subscriber, and creator being evaluated. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
