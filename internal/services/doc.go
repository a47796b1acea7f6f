// Package services defines shared utilities consumed by the polling pipeline
// and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, subscriber IDs, and creator IDs for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that let the scheduler tell
//     per-subscription failures apart from fatal persistence outages.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
