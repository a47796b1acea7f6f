package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynwatch/internal/config"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/logging"
	"dynwatch/internal/scheduler"
	"dynwatch/internal/services"
	"dynwatch/internal/subscription"
	"dynwatch/internal/testsupport"
)

type harness struct {
	cfg        *config.Config
	log        *eventLog
	feeds      *fakeFeeds
	live       *fakeLive
	store      *fakeStore
	dispatcher *fakeDispatcher
}

func newHarness(t *testing.T, subs ...subscription.Subscription) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Polling.IntervalMinutes = 0.0001
	log := &eventLog{}
	return &harness{
		cfg:        cfg,
		log:        log,
		feeds:      &fakeFeeds{feeds: map[int64][]dynamic.RawItem{}, errs: map[int64]error{}},
		live:       &fakeLive{rooms: map[int64]dynamic.LiveRoom{}},
		store:      newFakeStore(log, subs...),
		dispatcher: &fakeDispatcher{log: log},
	}
}

func (h *harness) scheduler(opts ...scheduler.Option) *scheduler.Scheduler {
	return scheduler.New(h.cfg, scheduler.Deps{
		Feeds:      h.feeds,
		Live:       h.live,
		Store:      h.store,
		Dispatcher: h.dispatcher,
	}, logging.NewNop(), opts...)
}

func seeded(subscriber string, creator int64, watermark string) subscription.Subscription {
	return subscription.Subscription{
		Subscriber:  subscriber,
		Creator:     creator,
		CreatorName: "Creator",
		Watermark:   watermark,
		Recent:      []string{watermark},
	}
}

func notificationIDs(items []engine.Notification) []string {
	ids := make([]string, 0, len(items))
	for _, n := range items {
		ids = append(ids, n.ItemID)
	}
	return ids
}

func TestRunCyclePersistsBeforeDispatch(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("103", "102", "101", "100")

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Subscriptions)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 3, summary.Notified)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, []string{"persist group-1/42", "dispatch group-1"}, h.log.all())

	calls := h.dispatcher.dynamicCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"101", "102", "103"}, notificationIDs(calls[0].items))

	persisted := h.store.persistCalls()
	require.Len(t, persisted, 1)
	require.NotNil(t, persisted[0].patch.Watermark)
	assert.Equal(t, "103", *persisted[0].patch.Watermark)
	assert.Nil(t, persisted[0].patch.IsLive)
}

func TestRunCycleSecondPassIsQuiet(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("102", "101", "100")
	s := h.scheduler()

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	summary, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Notified)
	assert.Len(t, h.dispatcher.dynamicCalls(), 1)
	assert.Len(t, h.store.persistCalls(), 1)
}

func TestRunCycleFetchFailureIsIsolated(t *testing.T) {
	h := newHarness(t, seeded("group-1", 1, "10"), seeded("group-1", 2, "20"))
	h.feeds.errs[1] = services.Wrap(services.ErrTransient, "bili", "fetch feed", "upstream reset", errNetwork)
	h.feeds.feeds[2] = testsupport.Feed("21", "20")

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.FetchFailures)
	persisted := h.store.persistCalls()
	require.Len(t, persisted, 1)
	assert.Equal(t, int64(2), persisted[0].key.Creator)
	calls := h.dispatcher.dynamicCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"21"}, notificationIDs(calls[0].items))
}

func TestRunCyclePersistenceFailureIsFatal(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	h.store.persistErr = services.Wrap(services.ErrPersistence, "store", "persist patch", "disk full", errors.New("sqlite: full"))

	_, err := h.scheduler().RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrPersistence))
	assert.Empty(t, h.dispatcher.dynamicCalls(), "nothing is sent when state could not be saved")
}

func TestRunCycleVanishedSubscriptionSkipsDispatch(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	h.store.persistErr = services.Wrap(services.ErrNotFound, "store", "persist patch", "subscription removed", nil)

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, h.dispatcher.dynamicCalls())
}

func TestRunCycleLiveTransitions(t *testing.T) {
	started := seeded("group-1", 42, "100")
	stopped := seeded("group-2", 42, "100")
	stopped.IsLive = true
	h := newHarness(t, started, stopped)
	h.feeds.feeds[42] = testsupport.Feed("100")
	h.live.rooms[42] = dynamic.LiveRoom{UID: 42, UserName: "Alice", Title: "late stream", RoomID: 7, LiveStatus: dynamic.LiveOn}

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LiveEvents)
	require.Len(t, h.live.calls, 1, "live status is looked up once per cycle")
	assert.Equal(t, []int64{42}, h.live.calls[0])

	events := h.dispatcher.liveEvents()
	require.Len(t, events, 1)
	assert.Equal(t, engine.LiveStarted, events[0].Type)
	assert.False(t, events[0].Simulated)

	persisted := h.store.persistCalls()
	require.Len(t, persisted, 1)
	assert.Equal(t, "group-1", persisted[0].key.Subscriber)
	require.NotNil(t, persisted[0].patch.IsLive)
	assert.True(t, *persisted[0].patch.IsLive)
}

func TestRunCycleLiveLookupFailureDefersLive(t *testing.T) {
	sub := seeded("group-1", 42, "100")
	sub.IsLive = true
	h := newHarness(t, sub)
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	h.live.err = services.Wrap(services.ErrTransient, "bili", "fetch live status", "timeout", errNetwork)

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.LiveUnavailable)
	assert.Empty(t, h.dispatcher.liveEvents())
	persisted := h.store.persistCalls()
	require.Len(t, persisted, 1)
	assert.Nil(t, persisted[0].patch.IsLive, "live flag untouched when the lookup failed")
	assert.Len(t, h.dispatcher.dynamicCalls(), 1)
}

func TestRunCycleWithoutLiveSource(t *testing.T) {
	sub := seeded("group-1", 42, "100")
	sub.IsLive = true
	h := newHarness(t, sub)
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	sched := scheduler.New(h.cfg, scheduler.Deps{
		Feeds:      h.feeds,
		Store:      h.store,
		Dispatcher: h.dispatcher,
	}, logging.NewNop())

	summary, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.LiveUnavailable)
	assert.Empty(t, h.dispatcher.liveEvents())
	assert.Len(t, h.dispatcher.dynamicCalls(), 1)

	_, err = sched.TestLive(context.Background(), "group-1", 42)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestRunCycleLiveExcludedSkipsLookup(t *testing.T) {
	sub := seeded("group-1", 42, "100")
	sub.Filters.Types = subscription.FilterTypes{subscription.TypeLive}
	h := newHarness(t, sub)
	h.feeds.feeds[42] = testsupport.Feed("100")

	_, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.live.calls)
}

func TestRunCycleCancelledBeforeLaunch(t *testing.T) {
	h := newHarness(t, seeded("group-1", 1, "10"), seeded("group-1", 2, "20"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.scheduler().RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, h.feeds.callCount())
}

func TestRunCycleBoundsConcurrency(t *testing.T) {
	var subs []subscription.Subscription
	for i := int64(1); i <= 8; i++ {
		subs = append(subs, seeded("group-1", i, "1"))
	}
	h := newHarness(t, subs...)
	h.cfg.Polling.Workers = 3
	h.feeds.delay = 20 * time.Millisecond

	summary, err := h.scheduler().RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Processed)
	assert.LessOrEqual(t, h.feeds.maxActive.Load(), int32(3))
}

func TestRunCycleReportsToHook(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("100")
	var got []scheduler.CycleSummary
	s := h.scheduler(scheduler.WithCycleHook(func(c scheduler.CycleSummary) {
		got = append(got, c)
	}))

	summary, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, summary.ID, got[0].ID)
	require.NotNil(t, s.Status().LastCycle)
	assert.Equal(t, summary.ID, s.Status().LastCycle.ID)
}

func TestStopLetsPipelineFinish(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	h.feeds.started = make(chan int64, 1)
	h.feeds.release = make(chan struct{})
	s := h.scheduler()

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyRunning)

	select {
	case <-h.feeds.started:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while a pipeline was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(h.feeds.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	assert.Len(t, h.store.persistCalls(), 1, "in-flight pipeline persisted despite shutdown")
	assert.Len(t, h.dispatcher.dynamicCalls(), 1)
	assert.NoError(t, s.Err())
	assert.False(t, s.Status().Running)
}

func TestStartEndsOnPersistenceFailure(t *testing.T) {
	h := newHarness(t, seeded("group-1", 42, "100"))
	h.feeds.feeds[42] = testsupport.Feed("101", "100")
	h.store.persistErr = services.Wrap(services.ErrPersistence, "store", "persist patch", "locked", nil)
	s := h.scheduler()

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler kept running after a persistence failure")
	}
	assert.ErrorIs(t, s.Err(), services.ErrPersistence)
	assert.NotEmpty(t, s.Status().LastError)
}

func TestTestDynamicSendsNewestWithoutPersisting(t *testing.T) {
	h := newHarness(t)
	h.feeds.feeds[42] = []dynamic.RawItem{
		testsupport.Post("9", testsupport.Pinned()),
		testsupport.Post("8"),
		testsupport.Post("7"),
	}

	n, err := h.scheduler().TestDynamic(context.Background(), "group-1", 42)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "8", n.ItemID)
	assert.Empty(t, h.store.persistCalls())
	calls := h.dispatcher.dynamicCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"8"}, notificationIDs(calls[0].items))
}

func TestTestDynamicEmptyFeed(t *testing.T) {
	h := newHarness(t)
	_, err := h.scheduler().TestDynamic(context.Background(), "group-1", 42)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.Empty(t, h.dispatcher.dynamicCalls())
}

func TestTestLiveForcesEvent(t *testing.T) {
	h := newHarness(t)
	h.live.rooms[42] = dynamic.LiveRoom{UID: 42, UserName: "Alice", RoomID: 7, LiveStatus: dynamic.LiveCarousel}

	ev, err := h.scheduler().TestLive(context.Background(), "group-1", 42)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, engine.LiveStopped, ev.Type)
	assert.True(t, ev.Simulated)
	assert.Len(t, h.dispatcher.liveEvents(), 1)
	assert.Empty(t, h.store.persistCalls())
}

func TestTestLiveUnknownRoom(t *testing.T) {
	h := newHarness(t)
	_, err := h.scheduler().TestLive(context.Background(), "group-1", 42)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
