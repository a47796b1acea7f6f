package engine

import (
	"fmt"

	"dynwatch/internal/dynamic"
	"dynwatch/internal/subscription"
)

// LiveEventType distinguishes going live from going offline.
type LiveEventType int

const (
	LiveStarted LiveEventType = iota + 1
	LiveStopped
)

func (t LiveEventType) String() string {
	switch t {
	case LiveStarted:
		return "live_started"
	case LiveStopped:
		return "live_stopped"
	default:
		return "unknown"
	}
}

// LiveEvent is a live-status notification.
type LiveEvent struct {
	Type      LiveEventType
	Creator   int64
	UserName  string
	Title     string
	Cover     string
	RoomID    int64
	Link      string
	Simulated bool
}

// Headline is the one-line summary used as a notification title.
func (e LiveEvent) Headline() string {
	name := e.UserName
	if name == "" {
		name = fmt.Sprintf("UID %d", e.Creator)
	}
	if e.Type == LiveStarted {
		return name + " is live"
	}
	return name + " ended the stream"
}

// PlainText renders the event without a card.
func (e LiveEvent) PlainText() string {
	out := e.Headline()
	if e.Type == LiveStarted && e.Title != "" {
		out += "\n" + e.Title
	}
	if e.Link != "" {
		out += "\n" + e.Link
	}
	return out
}

// LiveResult is the outcome of comparing a live-status snapshot with the
// persisted flag.
type LiveResult struct {
	Event *LiveEvent
	// IsLive is the flag to persist; only meaningful when Changed.
	IsLive  bool
	Changed bool
}

// Patch returns the persistence patch for the result.
func (r LiveResult) Patch() subscription.Patch {
	if !r.Changed {
		return subscription.Patch{}
	}
	live := r.IsLive
	return subscription.Patch{IsLive: &live}
}

// EvaluateLiveTransition emits an event only on a state change: live while
// the flag is off starts, not live while the flag is on stops. Carousel
// counts as not live. In forced mode an event is always produced from the
// current status alone and nothing is persisted; live is checked first so a
// live room yields a start event.
func EvaluateLiveTransition(room dynamic.LiveRoom, sub subscription.Subscription, forced bool) LiveResult {
	live := room.LiveStatus == dynamic.LiveOn
	switch {
	case forced && live:
		return LiveResult{Event: liveEvent(LiveStarted, room, sub, true), IsLive: sub.IsLive}
	case forced:
		return LiveResult{Event: liveEvent(LiveStopped, room, sub, true), IsLive: sub.IsLive}
	case live && !sub.IsLive:
		return LiveResult{Event: liveEvent(LiveStarted, room, sub, false), IsLive: true, Changed: true}
	case !live && sub.IsLive:
		return LiveResult{Event: liveEvent(LiveStopped, room, sub, false), IsLive: false, Changed: true}
	default:
		return LiveResult{IsLive: sub.IsLive}
	}
}

func liveEvent(kind LiveEventType, room dynamic.LiveRoom, sub subscription.Subscription, simulated bool) *LiveEvent {
	name := room.UserName
	if name == "" {
		name = sub.CreatorName
	}
	return &LiveEvent{
		Type:      kind,
		Creator:   sub.Creator,
		UserName:  name,
		Title:     room.Title,
		Cover:     room.Cover,
		RoomID:    room.RoomID,
		Link:      dynamic.LiveRoomURL(room.RoomID),
		Simulated: simulated,
	}
}
