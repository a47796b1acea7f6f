package subscription

import (
	"fmt"
	"slices"
	"time"
)

// Key identifies a subscription.
type Key struct {
	Subscriber string
	Creator    int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Subscriber, k.Creator)
}

// Subscription is one subscriber following one creator.
type Subscription struct {
	Subscriber  string
	Creator     int64
	CreatorName string

	// Watermark is the id of the newest item already handled, empty before seeding.
	Watermark string
	// Recent holds recently handled ids, newest first.
	Recent []string
	IsLive bool

	Filters Filters

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Subscription) Key() Key {
	return Key{Subscriber: s.Subscriber, Creator: s.Creator}
}

// Dedup returns the deduplication snapshot bounded to capacity.
func (s Subscription) Dedup(capacity int) DedupState {
	return DedupState{Watermark: s.Watermark, Recent: slices.Clone(s.Recent), Capacity: capacity}
}

// TracksLive reports whether live-status transitions should be evaluated.
func (s Subscription) TracksLive() bool {
	return !s.Filters.Types.Has(TypeLive)
}

// DedupState is the input to the diff: the last watermark and the window of
// recently seen ids.
type DedupState struct {
	Watermark string
	Recent    []string
	Capacity  int
}

// Known reports whether id has already been handled.
func (d DedupState) Known(id string) bool {
	if id == "" {
		return false
	}
	if id == d.Watermark {
		return true
	}
	return slices.Contains(d.Recent, id)
}

// Patch is the set of state changes a cycle wants persisted. Fields left nil
// are unchanged.
type Patch struct {
	Watermark *string
	Recent    []string
	IsLive    *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Watermark == nil && p.Recent == nil && p.IsLive == nil
}

// DedupChanged reports whether the patch touches the dedup columns.
func (p Patch) DedupChanged() bool {
	return p.Watermark != nil || p.Recent != nil
}

// Merge overlays other on p; fields set in other win.
func (p Patch) Merge(other Patch) Patch {
	out := p
	if other.Watermark != nil {
		out.Watermark = other.Watermark
	}
	if other.Recent != nil {
		out.Recent = other.Recent
	}
	if other.IsLive != nil {
		out.IsLive = other.IsLive
	}
	return out
}

// Apply returns a copy of sub with patch applied.
func Apply(sub Subscription, patch Patch) Subscription {
	out := sub
	if patch.Watermark != nil {
		out.Watermark = *patch.Watermark
	}
	if patch.Recent != nil {
		out.Recent = slices.Clone(patch.Recent)
	}
	if patch.IsLive != nil {
		out.IsLive = *patch.IsLive
	}
	return out
}
