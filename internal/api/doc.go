// Package api defines wire-format types and converters for the daemon's HTTP
// status endpoint, plus a small client used by the CLI.
//
// # Key Types
//
// DaemonStatus: running state, database and lock paths, and the scheduler's
// last cycle.
//
// Subscription: transport representation of a subscription with its filters
// and dedup position.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Filter types are exposed as their CLI tokens so the output can be pasted
// back into `dynwatch sub add`.
package api
