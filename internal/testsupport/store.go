package testsupport

import (
	"context"
	"testing"

	"dynwatch/internal/config"
	"dynwatch/internal/store"
	"dynwatch/internal/subscription"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AddSubscription inserts a subscription for tests.
func AddSubscription(t testing.TB, st *store.Store, sub subscription.Subscription) subscription.Subscription {
	t.Helper()

	if err := st.Add(context.Background(), sub); err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return sub
}
