package engine

import (
	"dynwatch/internal/dynamic"
	"dynwatch/internal/filter"
	"dynwatch/internal/subscription"
)

// Options bound a single evaluation.
type Options struct {
	// Limit is the per-cycle dispatch cap; see Throttle.
	Limit int
	// WindowCapacity bounds the recent-id window.
	WindowCapacity int
}

// ItemOutcome records what happened to one candidate.
type ItemOutcome struct {
	ID       string
	Kind     dynamic.Kind
	Decision filter.Decision
	// Sent is false for suppressed items and for survivors dropped by the cap.
	Sent bool
}

// CycleResult is everything a caller needs after evaluating one feed.
type CycleResult struct {
	// Dispatch is chronological (oldest first).
	Dispatch []Notification
	// Patch must be persisted before Dispatch is delivered.
	Patch    subscription.Patch
	Outcomes []ItemOutcome
	// CreatorName is the author name seen in the feed, if any.
	CreatorName     string
	Throttled       bool
	Exhausted       bool
	InvalidPatterns []filter.InvalidPattern
}

// EvaluateCycle runs diff, classification, filtering and throttling over one
// fetched feed. The watermark advances to the newest candidate even when that
// candidate is suppressed or throttled away, so the same items are never
// re-evaluated.
func EvaluateCycle(feed []dynamic.RawItem, sub subscription.Subscription, opts Options) CycleResult {
	diff := Diff(feed, sub.Dedup(opts.WindowCapacity))
	gate := filter.Compile(sub.Filters)
	res := CycleResult{
		Exhausted:       diff.Exhausted,
		InvalidPatterns: gate.Invalid(),
		CreatorName:     feedAuthorName(feed, sub.Creator),
	}
	if len(diff.Candidates) == 0 {
		return res
	}

	watermark := diff.Watermark
	res.Patch = subscription.Patch{Watermark: &watermark, Recent: diff.Recent}

	var survivors []Notification
	outcomeIndex := make(map[string]int, len(diff.Candidates))
	for _, raw := range diff.Candidates {
		item := dynamic.Classify(raw)
		decision := gate.Evaluate(item)
		outcomeIndex[item.ID] = len(res.Outcomes)
		res.Outcomes = append(res.Outcomes, ItemOutcome{ID: item.ID, Kind: item.Kind(), Decision: decision})
		if decision.Suppressed {
			continue
		}
		survivors = append(survivors, Normalize(sub.Creator, item))
	}

	throttled := Throttle(survivors, opts.Limit)
	res.Dispatch = throttled.Dispatch
	res.Throttled = throttled.Collapsed
	for _, n := range res.Dispatch {
		res.Outcomes[outcomeIndex[n.ItemID]].Sent = true
	}
	return res
}

func feedAuthorName(feed []dynamic.RawItem, creator int64) string {
	for _, item := range feed {
		if item.Modules == nil || item.Modules.Author == nil {
			continue
		}
		a := item.Modules.Author
		if a.Name != "" && (a.Mid == 0 || a.Mid == creator) {
			return a.Name
		}
	}
	return ""
}

// Seed initializes dedup state for a new subscription from the current feed
// without producing notifications.
func Seed(feed []dynamic.RawItem, sub subscription.Subscription, capacity int) subscription.Subscription {
	fresh := sub
	fresh.Watermark = ""
	fresh.Recent = nil
	res := EvaluateCycle(feed, fresh, Options{WindowCapacity: capacity})
	out := subscription.Apply(fresh, res.Patch)
	if out.CreatorName == "" {
		out.CreatorName = res.CreatorName
	}
	return out
}
