// Package logs reads the daemon's log file for `dynwatch logs`.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new output in follow mode. Filter narrows lines to one subscriber,
// creator, or minimum level and understands both the JSON and the console
// formats the daemon writes.
package logs
