package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dynwatch/internal/bili"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/filter"
	"dynwatch/internal/logging"
	"dynwatch/internal/services"
	"dynwatch/internal/subscription"
)

// Store is the persistence the registry manages.
type Store interface {
	Get(ctx context.Context, subscriber string, creator int64) (*subscription.Subscription, error)
	List(ctx context.Context, subscriber string) ([]subscription.Subscription, error)
	Add(ctx context.Context, sub subscription.Subscription) error
	UpdateFilters(ctx context.Context, subscriber string, creator int64, filters subscription.Filters) error
	Remove(ctx context.Context, subscriber string, creator int64) (bool, error)
	RemoveSubscriber(ctx context.Context, subscriber string) (int64, error)
}

// FeedFetcher returns a creator's newest-first feed, used to seed new subscriptions.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, creator int64) ([]dynamic.RawItem, error)
}

// ProfileFetcher looks up a creator's public profile.
type ProfileFetcher interface {
	FetchUserInfo(ctx context.Context, creator int64) (*bili.UserInfo, error)
}

// Registry creates, updates, and removes subscriptions.
type Registry struct {
	store    Store
	feeds    FeedFetcher
	profiles ProfileFetcher
	capacity int
	logger   *slog.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithProfiles makes Add reject creators the platform does not know and fill
// in the display name when the feed has none.
func WithProfiles(p ProfileFetcher) Option {
	return func(r *Registry) {
		r.profiles = p
	}
}

// New builds a registry. capacity bounds the recent-id window written when seeding.
func New(store Store, feeds FeedFetcher, capacity int, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		feeds:    feeds,
		capacity: capacity,
		logger:   logging.NewComponentLogger(logger, "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddResult describes what Add did.
type AddResult struct {
	Subscription subscription.Subscription
	// Updated is set when the subscription existed and only its filters changed.
	Updated bool
	// Invalid lists regex patterns that will never match because they do not compile.
	Invalid []filter.InvalidPattern
}

// Add subscribes subscriber to creator with filters parsed from args. An
// existing subscription keeps its dedup state and gets the new filters. A new
// one is seeded from the creator's current feed so history is not replayed.
func (r *Registry) Add(ctx context.Context, subscriber string, creator int64, args []string) (AddResult, error) {
	subscriber = strings.TrimSpace(subscriber)
	if subscriber == "" {
		return AddResult{}, services.Wrap(services.ErrConfiguration, "registry", "add", "subscriber is required", nil)
	}
	if creator <= 0 {
		return AddResult{}, services.Wrap(services.ErrConfiguration, "registry", "add",
			fmt.Sprintf("invalid creator uid %d", creator), nil)
	}
	filters := subscription.ParseFilterArgs(args)
	res := AddResult{Invalid: filter.Compile(filters).Invalid()}

	existing, err := r.store.Get(ctx, subscriber, creator)
	if err != nil {
		return AddResult{}, err
	}
	if existing != nil {
		if err := r.store.UpdateFilters(ctx, subscriber, creator, filters); err != nil {
			return AddResult{}, err
		}
		existing.Filters = filters
		res.Subscription = *existing
		res.Updated = true
		r.logger.Info("subscription filters updated",
			logging.String(logging.FieldEventType, "subscription_updated"),
			logging.String(logging.FieldSubscriber, subscriber),
			logging.Int64(logging.FieldCreator, creator),
		)
		return res, nil
	}

	seeded, err := r.seed(ctx, subscription.Subscription{Subscriber: subscriber, Creator: creator, Filters: filters})
	if err != nil {
		return AddResult{}, err
	}
	if err := r.store.Add(ctx, seeded); err != nil {
		return AddResult{}, err
	}
	res.Subscription = seeded
	r.logger.Info("subscription added",
		logging.String(logging.FieldEventType, "subscription_added"),
		logging.String(logging.FieldSubscriber, subscriber),
		logging.Int64(logging.FieldCreator, creator),
		logging.String("watermark", seeded.Watermark),
		logging.Int("recent", len(seeded.Recent)),
	)
	return res, nil
}

func (r *Registry) seed(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	var profileName string
	if r.profiles != nil {
		info, err := r.profiles.FetchUserInfo(ctx, sub.Creator)
		switch {
		case errors.Is(err, services.ErrNotFound):
			return subscription.Subscription{}, fmt.Errorf("creator %d: %w", sub.Creator, err)
		case err != nil:
			r.logger.Debug("creator profile unavailable", logging.Error(err))
		case info != nil:
			profileName = info.Name
		}
	}
	feed, err := r.feeds.FetchFeed(ctx, sub.Creator)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("seed %s from current feed: %w", sub.Key(), err)
	}
	seeded := engine.Seed(feed, sub, r.capacity)
	if seeded.CreatorName == "" {
		seeded.CreatorName = profileName
	}
	return seeded, nil
}

// Remove deletes one subscription; a missing subscription yields services.ErrNotFound.
func (r *Registry) Remove(ctx context.Context, subscriber string, creator int64) error {
	removed, err := r.store.Remove(ctx, subscriber, creator)
	if err != nil {
		return err
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "registry", "remove",
			fmt.Sprintf("%s is not subscribed to %d", subscriber, creator), nil)
	}
	r.logger.Info("subscription removed",
		logging.String(logging.FieldEventType, "subscription_removed"),
		logging.String(logging.FieldSubscriber, subscriber),
		logging.Int64(logging.FieldCreator, creator),
	)
	return nil
}

// Purge removes every subscription of subscriber and returns how many were deleted.
func (r *Registry) Purge(ctx context.Context, subscriber string) (int64, error) {
	n, err := r.store.RemoveSubscriber(ctx, subscriber)
	if err != nil {
		return 0, err
	}
	r.logger.Info("subscriber purged",
		logging.String(logging.FieldEventType, "subscriber_purged"),
		logging.String(logging.FieldSubscriber, subscriber),
		logging.Int64("removed", n),
	)
	return n, nil
}

// List returns subscriptions, all of them when subscriber is empty.
func (r *Registry) List(ctx context.Context, subscriber string) ([]subscription.Subscription, error) {
	return r.store.List(ctx, strings.TrimSpace(subscriber))
}
