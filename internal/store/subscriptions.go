package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dynwatch/internal/services"
	"dynwatch/internal/subscription"
)

// ErrDuplicate is returned by Add when the subscription already exists.
var ErrDuplicate = errors.New("subscription already exists")

const subscriptionColumns = "subscriber_id, creator_id, creator_name, watermark, recent_ids, is_live, filter_types, filter_regex, created_at, updated_at"

// Add inserts a new subscription.
func (s *Store) Add(ctx context.Context, sub subscription.Subscription) error {
	now := time.Now().UTC()
	cols, err := encodeRow(sub)
	if err != nil {
		return persistenceErr("add", "encode subscription", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Subscriber, sub.Creator, sub.CreatorName, sub.Watermark, cols.recent, boolToInt(sub.IsLive),
		cols.types, cols.regex, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, sub.Key())
		}
		return persistenceErr("add", "insert subscription", err)
	}
	return nil
}

// Upsert inserts sub or, when it exists, replaces its name and filters while
// keeping the stored dedup state.
func (s *Store) Upsert(ctx context.Context, sub subscription.Subscription) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cols, err := encodeRow(sub)
	if err != nil {
		return persistenceErr("upsert", "encode subscription", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscriber_id, creator_id) DO UPDATE SET
			creator_name = CASE WHEN excluded.creator_name <> '' THEN excluded.creator_name ELSE creator_name END,
			filter_types = excluded.filter_types,
			filter_regex = excluded.filter_regex,
			updated_at = excluded.updated_at`,
		sub.Subscriber, sub.Creator, sub.CreatorName, sub.Watermark, cols.recent, boolToInt(sub.IsLive),
		cols.types, cols.regex, now, now,
	)
	if err != nil {
		return persistenceErr("upsert", "upsert subscription", err)
	}
	return nil
}

// Get returns one subscription, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, subscriber string, creator int64) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscriber_id = ? AND creator_id = ?`,
		subscriber, creator,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("get", "scan subscription", err)
	}
	return sub, nil
}

// List returns every subscription of a subscriber, oldest first. An empty
// subscriber lists all subscriptions.
func (s *Store) List(ctx context.Context, subscriber string) ([]subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions`
	var args []any
	if subscriber != "" {
		query += ` WHERE subscriber_id = ?`
		args = append(args, subscriber)
	}
	query += ` ORDER BY subscriber_id, created_at, creator_id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, persistenceErr("list", "query subscriptions", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, persistenceErr("list", "scan subscription", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list", "iterate subscriptions", err)
	}
	return out, nil
}

// LoadSubscriptions returns every subscription grouped by subscriber.
func (s *Store) LoadSubscriptions(ctx context.Context) (map[string][]subscription.Subscription, error) {
	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]subscription.Subscription)
	for _, sub := range all {
		out[sub.Subscriber] = append(out[sub.Subscriber], sub)
	}
	return out, nil
}

// UpdateFilters replaces a subscription's filters.
func (s *Store) UpdateFilters(ctx context.Context, subscriber string, creator int64, filters subscription.Filters) error {
	types, regex, err := encodeFilters(filters)
	if err != nil {
		return persistenceErr("update filters", "encode filters", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE subscriptions SET filter_types = ?, filter_regex = ?, updated_at = ? WHERE subscriber_id = ? AND creator_id = ?`,
		types, regex, time.Now().UTC().Format(time.RFC3339Nano), subscriber, creator,
	)
	if err != nil {
		return persistenceErr("update filters", "update subscription", err)
	}
	return requireRow(res, subscriber, creator)
}

// PersistPatch applies a cycle's patch in one statement. An empty patch is a no-op.
func (s *Store) PersistPatch(ctx context.Context, subscriber string, creator int64, patch subscription.Patch) error {
	if patch.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if patch.Watermark != nil {
		sets = append(sets, "watermark = ?")
		args = append(args, *patch.Watermark)
	}
	if patch.Recent != nil {
		encoded, err := encodeList(patch.Recent)
		if err != nil {
			return persistenceErr("persist patch", "encode recent ids", err)
		}
		sets = append(sets, "recent_ids = ?")
		args = append(args, encoded)
	}
	if patch.IsLive != nil {
		sets = append(sets, "is_live = ?")
		args = append(args, boolToInt(*patch.IsLive))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), subscriber, creator)

	res, err := s.execWithRetry(ctx,
		`UPDATE subscriptions SET `+strings.Join(sets, ", ")+` WHERE subscriber_id = ? AND creator_id = ?`,
		args...,
	)
	if err != nil {
		return persistenceErr("persist patch", "update subscription", err)
	}
	return requireRow(res, subscriber, creator)
}

// SetCreatorName records the display name seen in the creator's feed.
func (s *Store) SetCreatorName(ctx context.Context, creator int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE subscriptions SET creator_name = ? WHERE creator_id = ? AND creator_name <> ?`,
		name, creator, name,
	)
	if err != nil {
		return persistenceErr("set creator name", "update subscription", err)
	}
	return nil
}

// Remove deletes one subscription and reports whether it existed.
func (s *Store) Remove(ctx context.Context, subscriber string, creator int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND creator_id = ?`, subscriber, creator)
	if err != nil {
		return false, persistenceErr("remove", "delete subscription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistenceErr("remove", "rows affected", err)
	}
	return n > 0, nil
}

// RemoveSubscriber deletes every subscription of a subscriber.
func (s *Store) RemoveSubscriber(ctx context.Context, subscriber string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM subscriptions WHERE subscriber_id = ?`, subscriber)
	if err != nil {
		return 0, persistenceErr("remove subscriber", "delete subscriptions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceErr("remove subscriber", "rows affected", err)
	}
	return n, nil
}

func requireRow(res sql.Result, subscriber string, creator int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("update", "rows affected", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update",
			fmt.Sprintf("subscription %s/%d not found", subscriber, creator), nil)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
