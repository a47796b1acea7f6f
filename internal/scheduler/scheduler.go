package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dynwatch/internal/config"
	"dynwatch/internal/dispatch"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/logging"
	"dynwatch/internal/subscription"
)

// FeedFetcher returns a creator's newest-first feed.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, creator int64) ([]dynamic.RawItem, error)
}

// LiveFetcher looks up live rooms for many creators at once.
type LiveFetcher interface {
	FetchLiveStatus(ctx context.Context, creators []int64) (map[int64]dynamic.LiveRoom, error)
}

// Store is the persistence the scheduler needs.
type Store interface {
	LoadSubscriptions(ctx context.Context) (map[string][]subscription.Subscription, error)
	PersistPatch(ctx context.Context, subscriber string, creator int64, patch subscription.Patch) error
	SetCreatorName(ctx context.Context, creator int64, name string) error
}

// Dispatcher delivers evaluated notifications.
type Dispatcher interface {
	DispatchDynamics(ctx context.Context, subscriber string, items []engine.Notification) dispatch.Report
	DispatchLive(ctx context.Context, subscriber string, ev engine.LiveEvent) error
}

// Deps are the scheduler's collaborators.
type Deps struct {
	Feeds      FeedFetcher
	Live       LiveFetcher
	Store      Store
	Dispatcher Dispatcher
}

// Scheduler runs polling cycles.
type Scheduler struct {
	deps       Deps
	logger     *slog.Logger
	interval   time.Duration
	opts       engine.Options
	workers    int
	subTimeout time.Duration
	inflight   *inflightSet
	onCycle    func(CycleSummary)

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	lastErr   error
	lastCycle *CycleSummary
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithCycleHook registers a callback invoked after every completed cycle.
func WithCycleHook(fn func(CycleSummary)) Option {
	return func(s *Scheduler) {
		s.onCycle = fn
	}
}

// New builds a scheduler from configuration.
func New(cfg *config.Config, deps Deps, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:     deps,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		interval: cfg.PollInterval(),
		opts: engine.Options{
			Limit:          cfg.Polling.DynamicLimit,
			WindowCapacity: cfg.Polling.RecentWindow,
		},
		workers:    max(cfg.Polling.Workers, 1),
		subTimeout: cfg.SubscriptionTimeout(),
		inflight:   newInflightSet(),
	}
	if s.subTimeout <= 0 {
		s.subTimeout = 2 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inflightSet guarantees a subscription has at most one pipeline running.
type inflightSet struct {
	mu   sync.Mutex
	keys map[subscription.Key]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[subscription.Key]struct{})}
}

func (s *inflightSet) acquire(key subscription.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.keys[key]; busy {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *inflightSet) release(key subscription.Key) {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
}
