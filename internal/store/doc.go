// Package store persists subscriptions in SQLite.
//
// The database lives under the configured data directory. Each subscription
// row carries its filters and dedup state; PersistPatch applies a cycle's
// patch as a single UPDATE so a watermark and its recent window can never be
// observed half-written. Every error returned by the store is marked with
// services.ErrPersistence so the scheduler can treat it as fatal.
package store
