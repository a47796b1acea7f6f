// Package scheduler drives the polling loop.
//
// A Scheduler owns its cancellation and per-subscription exclusivity; there
// is no package-level state. Each cycle loads a fresh snapshot of every
// subscription, performs one batched live-status lookup, and then runs the
// per-subscription pipeline (fetch, evaluate, persist, dispatch) on a bounded
// worker pool. A stop request is observed between subscriptions; a pipeline
// that has started always runs to completion so its patch is never left
// half-applied. Only persistence failures end the loop.
package scheduler
