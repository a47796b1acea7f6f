package scheduler

import (
	"context"
	"fmt"

	"dynwatch/internal/engine"
	"dynwatch/internal/services"
	"dynwatch/internal/subscription"
)

// TestDynamic sends the creator's newest displayable dynamic to subscriber,
// ignoring dedup state and filters. Nothing is persisted.
func (s *Scheduler) TestDynamic(ctx context.Context, subscriber string, creator int64) (*engine.Notification, error) {
	feed, err := s.deps.Feeds.FetchFeed(ctx, creator)
	if err != nil {
		return nil, err
	}
	probe := subscription.Subscription{Subscriber: subscriber, Creator: creator}
	res := engine.EvaluateCycle(feed, probe, engine.Options{Limit: 1, WindowCapacity: s.opts.WindowCapacity})
	if len(res.Dispatch) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "test dynamic",
			fmt.Sprintf("none of %d feed items can be displayed", len(feed)), nil)
	}
	n := res.Dispatch[len(res.Dispatch)-1]
	report := s.deps.Dispatcher.DispatchDynamics(ctx, subscriber, []engine.Notification{n})
	if report.Failed > 0 {
		return &n, services.Wrap(services.ErrDelivery, "scheduler", "test dynamic", "delivery failed", nil)
	}
	return &n, nil
}

// TestLive sends a live notification built from the creator's current room
// status. A live room yields a start event, anything else a stop event.
// Nothing is persisted.
func (s *Scheduler) TestLive(ctx context.Context, subscriber string, creator int64) (*engine.LiveEvent, error) {
	if s.deps.Live == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "test live", "no live status source configured", nil)
	}
	rooms, err := s.deps.Live.FetchLiveStatus(ctx, []int64{creator})
	if err != nil {
		return nil, err
	}
	room, ok := rooms[creator]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "test live",
			fmt.Sprintf("creator %d has no live room", creator), nil)
	}
	res := engine.EvaluateLiveTransition(room, subscription.Subscription{Subscriber: subscriber, Creator: creator}, true)
	if err := s.deps.Dispatcher.DispatchLive(ctx, subscriber, *res.Event); err != nil {
		return res.Event, err
	}
	return res.Event, nil
}
