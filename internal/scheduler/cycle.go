package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/logging"
	"dynwatch/internal/services"
	"dynwatch/internal/subscription"
)

// CycleSummary aggregates one polling cycle.
type CycleSummary struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Subscriptions    int
	Processed        int
	Skipped          int
	FetchFailures    int
	Notified         int
	DeliveryFailures int
	LiveEvents       int
	LiveUnavailable  bool
	Cancelled        bool
}

func (c CycleSummary) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// SubscriptionResult is the outcome of one pipeline run.
type SubscriptionResult struct {
	Key       subscription.Key
	FetchErr  error
	Cycle     engine.CycleResult
	Live      engine.LiveResult
	Persisted bool
	Delivered int
	Failed    int
}

// RunCycle evaluates every subscription once. It returns an error only for
// persistence failures; everything else is logged and scoped to the
// subscription it happened in.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{ID: uuid.NewString(), StartedAt: time.Now()}
	ctx = services.WithCycleID(ctx, summary.ID)
	logger := logging.WithContext(ctx, s.logger)

	grouped, err := s.deps.Store.LoadSubscriptions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			summary.Cancelled = true
			summary.FinishedAt = time.Now()
			return summary, nil
		}
		return summary, err
	}
	subs := flatten(grouped)
	summary.Subscriptions = len(subs)

	rooms, liveOK := s.fetchLive(ctx, logger, subs)
	summary.LiveUnavailable = !liveOK

	var (
		mu    sync.Mutex
		fatal atomic.Bool
		g     errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, sub := range subs {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		if fatal.Load() {
			break
		}
		key := sub.Key()
		if !s.inflight.acquire(key) {
			summary.Skipped++
			logger.Debug("subscription already in flight; skipping",
				logging.String(logging.FieldSubscriber, key.Subscriber),
				logging.Int64(logging.FieldCreator, key.Creator),
				logging.String(logging.FieldEventType, "subscription_skipped"),
			)
			continue
		}
		g.Go(func() error {
			defer s.inflight.release(key)
			res, err := s.ProcessSubscription(ctx, sub, rooms, liveOK)
			mu.Lock()
			summary.Processed++
			if res.FetchErr != nil {
				summary.FetchFailures++
			}
			summary.Notified += res.Delivered
			summary.DeliveryFailures += res.Failed
			if res.Live.Event != nil {
				summary.LiveEvents++
			}
			mu.Unlock()
			if services.IsFatal(err) {
				fatal.Store(true)
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()
	summary.FinishedAt = time.Now()
	s.setLastCycle(summary)
	if waitErr != nil {
		return summary, waitErr
	}

	logger.Info("cycle complete",
		logging.String(logging.FieldEventType, "cycle_complete"),
		logging.Int("subscriptions", summary.Subscriptions),
		logging.Int("processed", summary.Processed),
		logging.Int("notified", summary.Notified),
		logging.Int("fetch_failures", summary.FetchFailures),
		logging.Int("live_events", summary.LiveEvents),
		logging.Bool("cancelled", summary.Cancelled),
		logging.Duration("duration", summary.Duration()),
	)
	if s.onCycle != nil {
		s.onCycle(summary)
	}
	return summary, nil
}

// ProcessSubscription runs one subscription's pipeline: fetch, evaluate,
// live check, persist, dispatch. It detaches from ctx cancellation so a stop
// request never interrupts a pipeline midway; fetch and delivery are bounded
// by the subscription timeout instead. The patch is persisted before any
// notification is sent, so a crash after persisting drops notifications
// rather than repeating them on restart.
func (s *Scheduler) ProcessSubscription(ctx context.Context, sub subscription.Subscription, rooms map[int64]dynamic.LiveRoom, liveOK bool) (SubscriptionResult, error) {
	base := context.WithoutCancel(ctx)
	base = services.WithSubscriber(base, sub.Subscriber)
	base = services.WithCreator(base, sub.Creator)
	logger := logging.WithContext(base, s.logger)
	res := SubscriptionResult{Key: sub.Key()}

	fetchCtx, cancelFetch := context.WithTimeout(base, s.subTimeout)
	feed, err := s.deps.Feeds.FetchFeed(fetchCtx, sub.Creator)
	cancelFetch()
	if err != nil {
		res.FetchErr = err
		logging.WarnWithContext(logger, "feed fetch failed; state untouched", "feed_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "subscription retried next cycle"),
		)
	} else {
		res.Cycle = engine.EvaluateCycle(feed, sub, s.opts)
		s.logOutcomes(logger, res.Cycle)
	}

	if sub.TracksLive() && liveOK {
		if room, ok := rooms[sub.Creator]; ok {
			res.Live = engine.EvaluateLiveTransition(room, sub, false)
		}
	}

	patch := res.Cycle.Patch.Merge(res.Live.Patch())
	if !patch.Empty() {
		if err := s.deps.Store.PersistPatch(base, sub.Subscriber, sub.Creator, patch); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				logger.Info("subscription removed during cycle; discarding results",
					logging.String(logging.FieldEventType, "subscription_vanished"),
				)
				return res, nil
			}
			logging.ErrorWithContext(logger, "persist patch failed; notifications withheld", "persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
			)
			return res, err
		}
		res.Persisted = true
	}

	if name := res.Cycle.CreatorName; name != "" && name != sub.CreatorName {
		if err := s.deps.Store.SetCreatorName(base, sub.Creator, name); err != nil {
			logger.Warn("creator name update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "creator_name_failed"),
			)
		}
	}

	dispatchCtx, cancelDispatch := context.WithTimeout(base, s.subTimeout)
	defer cancelDispatch()
	if len(res.Cycle.Dispatch) > 0 {
		report := s.deps.Dispatcher.DispatchDynamics(dispatchCtx, sub.Subscriber, res.Cycle.Dispatch)
		res.Delivered += report.Delivered
		res.Failed += report.Failed
	}
	if ev := res.Live.Event; ev != nil {
		if err := s.deps.Dispatcher.DispatchLive(dispatchCtx, sub.Subscriber, *ev); err != nil {
			res.Failed++
		} else {
			res.Delivered++
		}
	}
	return res, nil
}

func (s *Scheduler) fetchLive(ctx context.Context, logger *slog.Logger, subs []subscription.Subscription) (map[int64]dynamic.LiveRoom, bool) {
	creators := liveCreators(subs)
	if len(creators) == 0 {
		return nil, true
	}
	if s.deps.Live == nil {
		return nil, false
	}
	liveCtx, cancel := context.WithTimeout(ctx, s.subTimeout)
	defer cancel()
	rooms, err := s.deps.Live.FetchLiveStatus(liveCtx, creators)
	if err != nil {
		logging.WarnWithContext(logger, "live status lookup failed; no live updates this cycle", "live_fetch_failed",
			logging.Error(err),
			logging.Int("creators", len(creators)),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "live transitions deferred to next cycle"),
		)
		return nil, false
	}
	return rooms, true
}

func (s *Scheduler) logOutcomes(logger *slog.Logger, res engine.CycleResult) {
	for _, bad := range res.InvalidPatterns {
		logging.WarnWithContext(logger, "invalid filter pattern skipped", "filter_pattern_invalid",
			logging.String("pattern", bad.Pattern),
			logging.Error(bad.Err),
			logging.String(logging.FieldErrorHint, "fix or remove the pattern with 'dynwatch sub add'"),
			logging.String(logging.FieldImpact, "remaining patterns still apply"),
		)
	}
	for _, o := range res.Outcomes {
		result := "notify"
		switch {
		case o.Decision.Suppressed:
			result = "suppressed"
		case !o.Sent:
			result = "throttled"
		}
		attrs := logging.DecisionAttrs("dynamic_filter", result, o.Decision.String())
		attrs = append(attrs,
			logging.String(logging.FieldItemID, o.ID),
			logging.String("kind", o.Kind.String()),
		)
		logger.Debug("dynamic evaluated", logging.Args(attrs...)...)
	}
	if res.Throttled {
		logger.Info("new dynamics exceeded the per-cycle cap; sending newest only",
			logging.String(logging.FieldEventType, "dynamic_throttled"),
			logging.Int("candidates", len(res.Outcomes)),
		)
	}
	if res.Exhausted {
		logger.Debug("feed scan did not reach a known item",
			logging.String(logging.FieldEventType, "dedup_boundary_missing"),
		)
	}
}

func flatten(grouped map[string][]subscription.Subscription) []subscription.Subscription {
	subscribers := make([]string, 0, len(grouped))
	for id := range grouped {
		subscribers = append(subscribers, id)
	}
	sort.Strings(subscribers)
	var out []subscription.Subscription
	for _, id := range subscribers {
		out = append(out, grouped[id]...)
	}
	return out
}

func liveCreators(subs []subscription.Subscription) []int64 {
	var out []int64
	for _, sub := range subs {
		if sub.TracksLive() && !slices.Contains(out, sub.Creator) {
			out = append(out, sub.Creator)
		}
	}
	slices.Sort(out)
	return out
}
