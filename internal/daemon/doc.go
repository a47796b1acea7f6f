// Package daemon coordinates the long-running dynwatch process.
//
// It wires configuration, the subscription store, and the polling scheduler
// into a single lifecycle with flock-based locking to prevent two daemons from
// polling (and persisting) the same subscriptions. When api.bind is set the
// daemon also serves a read-only JSON status endpoint guarded by an optional
// bearer token.
//
// Keep orchestration logic here: the polling pipeline lives in scheduler and
// engine while the daemon focuses on startup, shutdown, and status.
package daemon
