package api

import (
	"time"

	"dynwatch/internal/scheduler"
	"dynwatch/internal/subscription"
)

// FromSubscription converts a stored subscription to its API representation.
func FromSubscription(sub subscription.Subscription) Subscription {
	dto := Subscription{
		Subscriber:   sub.Subscriber,
		Creator:      sub.Creator,
		CreatorName:  sub.CreatorName,
		Watermark:    sub.Watermark,
		RecentCount:  len(sub.Recent),
		IsLive:       sub.IsLive,
		TracksLive:   sub.TracksLive(),
		ExcludeTypes: sub.Filters.Types.Strings(),
		ExcludeRegex: append([]string(nil), sub.Filters.Regex...),
		CreatedAt:    formatTime(sub.CreatedAt),
		UpdatedAt:    formatTime(sub.UpdatedAt),
	}
	if len(dto.ExcludeTypes) == 0 {
		dto.ExcludeTypes = nil
	}
	if len(dto.ExcludeRegex) == 0 {
		dto.ExcludeRegex = nil
	}
	return dto
}

// FromSubscriptions converts subscriptions, preserving order.
func FromSubscriptions(subs []subscription.Subscription) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, FromSubscription(sub))
	}
	return out
}

// FromCycleSummary converts the scheduler's per-cycle summary.
func FromCycleSummary(c scheduler.CycleSummary) CycleStatus {
	return CycleStatus{
		ID:               c.ID,
		StartedAt:        formatTime(c.StartedAt),
		FinishedAt:       formatTime(c.FinishedAt),
		DurationMillis:   c.Duration().Milliseconds(),
		Subscriptions:    c.Subscriptions,
		Processed:        c.Processed,
		Skipped:          c.Skipped,
		FetchFailures:    c.FetchFailures,
		Notified:         c.Notified,
		DeliveryFailures: c.DeliveryFailures,
		LiveEvents:       c.LiveEvents,
		LiveUnavailable:  c.LiveUnavailable,
		Cancelled:        c.Cancelled,
	}
}

// FromStatusSummary converts scheduler.StatusSummary to SchedulerStatus.
func FromStatusSummary(s scheduler.StatusSummary) SchedulerStatus {
	dto := SchedulerStatus{Running: s.Running, LastError: s.LastError}
	if s.LastCycle != nil {
		cycle := FromCycleSummary(*s.LastCycle)
		dto.LastCycle = &cycle
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
