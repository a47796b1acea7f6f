package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dynwatch/internal/dispatch"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/subscription"
)

// eventLog records cross-collaborator ordering.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeFeeds struct {
	mu      sync.Mutex
	feeds   map[int64][]dynamic.RawItem
	errs    map[int64]error
	calls   []int64
	delay   time.Duration
	started chan int64
	release chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeFeeds) FetchFeed(ctx context.Context, creator int64) ([]dynamic.RawItem, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, creator)
	feed := f.feeds[creator]
	err := f.errs[creator]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- creator
	}
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return feed, err
}

func (f *fakeFeeds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLive struct {
	mu    sync.Mutex
	rooms map[int64]dynamic.LiveRoom
	err   error
	calls [][]int64
}

func (f *fakeLive) FetchLiveStatus(_ context.Context, creators []int64) (map[int64]dynamic.LiveRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]int64(nil), creators...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]dynamic.LiveRoom)
	for _, id := range creators {
		if room, ok := f.rooms[id]; ok {
			out[id] = room
		}
	}
	return out, nil
}

type persistCall struct {
	key   subscription.Key
	patch subscription.Patch
}

type fakeStore struct {
	mu         sync.Mutex
	subs       map[string][]subscription.Subscription
	persisted  []persistCall
	names      map[int64]string
	persistErr error
	loadErr    error
	log        *eventLog
}

func newFakeStore(log *eventLog, subs ...subscription.Subscription) *fakeStore {
	st := &fakeStore{subs: make(map[string][]subscription.Subscription), names: make(map[int64]string), log: log}
	for _, sub := range subs {
		st.subs[sub.Subscriber] = append(st.subs[sub.Subscriber], sub)
	}
	return st
}

func (s *fakeStore) LoadSubscriptions(context.Context) (map[string][]subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string][]subscription.Subscription, len(s.subs))
	for k, v := range s.subs {
		out[k] = append([]subscription.Subscription(nil), v...)
	}
	return out, nil
}

func (s *fakeStore) PersistPatch(_ context.Context, subscriber string, creator int64, patch subscription.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	key := subscription.Key{Subscriber: subscriber, Creator: creator}
	s.persisted = append(s.persisted, persistCall{key: key, patch: patch})
	list := s.subs[subscriber]
	for i := range list {
		if list[i].Creator == creator {
			list[i] = subscription.Apply(list[i], patch)
		}
	}
	if s.log != nil {
		s.log.add("persist %s", key)
	}
	return nil
}

func (s *fakeStore) SetCreatorName(_ context.Context, creator int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[creator] = name
	return nil
}

func (s *fakeStore) persistCalls() []persistCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persistCall(nil), s.persisted...)
}

type dynamicCall struct {
	subscriber string
	items      []engine.Notification
}

type fakeDispatcher struct {
	mu       sync.Mutex
	dynamics []dynamicCall
	live     []engine.LiveEvent
	liveErr  error
	log      *eventLog
}

func (d *fakeDispatcher) DispatchDynamics(_ context.Context, subscriber string, items []engine.Notification) dispatch.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dynamics = append(d.dynamics, dynamicCall{subscriber: subscriber, items: items})
	if d.log != nil {
		d.log.add("dispatch %s", subscriber)
	}
	return dispatch.Report{Delivered: len(items)}
}

func (d *fakeDispatcher) DispatchLive(_ context.Context, subscriber string, ev engine.LiveEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live = append(d.live, ev)
	if d.log != nil {
		d.log.add("live %s %s", subscriber, ev.Type)
	}
	return d.liveErr
}

func (d *fakeDispatcher) dynamicCalls() []dynamicCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dynamicCall(nil), d.dynamics...)
}

func (d *fakeDispatcher) liveEvents() []engine.LiveEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]engine.LiveEvent(nil), d.live...)
}

var errNetwork = errors.New("connection reset")
