// Package main hosts the dynwatch CLI entrypoint and command graph.
//
// The Cobra command tree covers three audiences. Operators run the daemon
// (`run`, `start`, `stop`, `status`). Subscription management (`sub ...`)
// opens the SQLite store directly, which is safe next to a running daemon
// because the store runs in WAL mode. Diagnostics (`sub test`, `live test`,
// `notify test`) push a one-off notification through the same renderer and
// ntfy client the daemon uses, without touching dedup state.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here as a command or flag.
package main
