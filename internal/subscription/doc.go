// Package subscription defines the persisted subscription record, its filter
// rules, the deduplication state, and the patch a polling cycle produces.
//
// Records are treated as immutable snapshots: the evaluation pipeline reads a
// Subscription and returns a Patch, and only the store applies it.
package subscription
