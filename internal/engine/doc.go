// Package engine holds the pure per-subscription evaluation pipeline: diff
// the feed against the dedup state, classify and filter the new items,
// throttle the survivors, and compute the live-status transition.
//
// Nothing here performs I/O. EvaluateCycle and EvaluateLiveTransition take a
// snapshot and return the notifications to send plus the Patch the caller
// must persist before sending them.
package engine
