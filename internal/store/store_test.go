package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"dynwatch/internal/services"
	"dynwatch/internal/store"
	"dynwatch/internal/subscription"
	"dynwatch/internal/testsupport"
)

func newSub(subscriber string, creator int64) subscription.Subscription {
	return subscription.Subscription{
		Subscriber:  subscriber,
		Creator:     creator,
		CreatorName: "creator",
		Watermark:   "100",
		Recent:      []string{"100", "99"},
		Filters: subscription.Filters{
			Types: subscription.FilterTypes{subscription.TypeLottery},
			Regex: []string{"ad$"},
		},
	}
}

func TestAddAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.AddSubscription(t, st, newSub("group-1", 42))

	got, err := st.Get(ctx, "group-1", 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected subscription")
	}
	if got.Watermark != "100" || !reflect.DeepEqual(got.Recent, []string{"100", "99"}) {
		t.Fatalf("dedup state not round-tripped: %+v", got)
	}
	if !got.Filters.Types.Has(subscription.TypeLottery) || !reflect.DeepEqual(got.Filters.Regex, []string{"ad$"}) {
		t.Fatalf("filters not round-tripped: %+v", got.Filters)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not recorded")
	}

	missing, err := st.Get(ctx, "group-1", 7)
	if err != nil || missing != nil {
		t.Fatalf("Get missing = %v, %v", missing, err)
	}
}

func TestAddDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.AddSubscription(t, st, newSub("g", 1))
	err := st.Add(context.Background(), newSub("g", 1))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if services.IsFatal(err) {
		t.Fatal("duplicate must not be treated as a persistence failure")
	}
}

func TestPersistPatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.AddSubscription(t, st, newSub("g", 1))

	wm := "105"
	live := true
	patch := subscription.Patch{Watermark: &wm, Recent: []string{"105", "104", "100", "99"}, IsLive: &live}
	if err := st.PersistPatch(ctx, "g", 1, patch); err != nil {
		t.Fatalf("PersistPatch failed: %v", err)
	}
	got, err := st.Get(ctx, "g", 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Watermark != "105" || !got.IsLive || len(got.Recent) != 4 {
		t.Fatalf("patch not applied: %+v", got)
	}

	offline := false
	if err := st.PersistPatch(ctx, "g", 1, subscription.Patch{IsLive: &offline}); err != nil {
		t.Fatalf("PersistPatch live-only failed: %v", err)
	}
	got, _ = st.Get(ctx, "g", 1)
	if got.IsLive || got.Watermark != "105" {
		t.Fatalf("live-only patch clobbered dedup state: %+v", got)
	}

	if err := st.PersistPatch(ctx, "g", 1, subscription.Patch{}); err != nil {
		t.Fatalf("empty patch should be a no-op: %v", err)
	}
}

func TestPersistPatchMissingSubscription(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	wm := "1"
	err := st.PersistPatch(context.Background(), "nobody", 9, subscription.Patch{Watermark: &wm})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if services.IsFatal(err) {
		t.Fatal("removed subscription must not stop the scheduler")
	}
}

func TestLoadSubscriptionsGroupsBySubscriber(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.AddSubscription(t, st, newSub("a", 1))
	testsupport.AddSubscription(t, st, newSub("a", 2))
	testsupport.AddSubscription(t, st, newSub("b", 1))

	grouped, err := st.LoadSubscriptions(ctx)
	if err != nil {
		t.Fatalf("LoadSubscriptions failed: %v", err)
	}
	if len(grouped) != 2 || len(grouped["a"]) != 2 || len(grouped["b"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}

	only, err := st.List(ctx, "b")
	if err != nil || len(only) != 1 || only[0].Creator != 1 {
		t.Fatalf("List(b) = %+v, %v", only, err)
	}
}

func TestUpdateFiltersAndUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.AddSubscription(t, st, newSub("g", 1))

	if err := st.UpdateFilters(ctx, "g", 1, subscription.Filters{Types: subscription.FilterTypes{subscription.TypeLive}}); err != nil {
		t.Fatalf("UpdateFilters failed: %v", err)
	}
	got, _ := st.Get(ctx, "g", 1)
	if got.TracksLive() || len(got.Filters.Regex) != 0 || got.Watermark != "100" {
		t.Fatalf("filters not replaced cleanly: %+v", got)
	}

	if err := st.UpdateFilters(ctx, "g", 2, subscription.Filters{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	imported := subscription.Subscription{Subscriber: "g", Creator: 1, Watermark: "should-not-win",
		Filters: subscription.Filters{Regex: []string{"x"}}}
	if err := st.Upsert(ctx, imported); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	got, _ = st.Get(ctx, "g", 1)
	if got.Watermark != "100" || got.CreatorName != "creator" || !reflect.DeepEqual(got.Filters.Regex, []string{"x"}) {
		t.Fatalf("upsert should replace filters only: %+v", got)
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.AddSubscription(t, st, newSub("g", 1))
	testsupport.AddSubscription(t, st, newSub("g", 2))
	testsupport.AddSubscription(t, st, newSub("h", 1))

	removed, err := st.Remove(ctx, "g", 1)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, err = st.Remove(ctx, "g", 1)
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}

	n, err := st.RemoveSubscriber(ctx, "g")
	if err != nil || n != 1 {
		t.Fatalf("RemoveSubscriber = %d, %v", n, err)
	}
	rest, _ := st.List(ctx, "")
	if len(rest) != 1 || rest[0].Subscriber != "h" {
		t.Fatalf("unexpected remaining rows: %+v", rest)
	}
}

func TestSetCreatorName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.AddSubscription(t, st, newSub("a", 5))
	testsupport.AddSubscription(t, st, newSub("b", 5))

	if err := st.SetCreatorName(ctx, 5, "Renamed"); err != nil {
		t.Fatalf("SetCreatorName failed: %v", err)
	}
	for _, subscriber := range []string{"a", "b"} {
		got, _ := st.Get(ctx, subscriber, 5)
		if got.CreatorName != "Renamed" {
			t.Fatalf("%s: creator name = %q", subscriber, got.CreatorName)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.AddSubscription(t, st, newSub("g", 1))
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if filepath.Base(st.Path()) != "subscriptions.db" {
		t.Fatalf("unexpected db path %s", st.Path())
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if err := reopened.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	got, err := reopened.Get(context.Background(), "g", 1)
	if err != nil || got == nil {
		t.Fatalf("Get after reopen = %v, %v", got, err)
	}
}
