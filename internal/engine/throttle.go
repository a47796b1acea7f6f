package engine

import "slices"

// ThrottleResult is the dispatch list after applying the per-cycle cap.
type ThrottleResult struct {
	// Dispatch is ordered oldest to newest.
	Dispatch []Notification
	// Collapsed is set when the cap was exceeded and only the newest item survived.
	Collapsed bool
	Dropped   int
}

// Throttle caps how many notifications a single cycle sends. Input is newest
// first. At or under the cap everything is sent in chronological order; over
// the cap only the newest notification is sent. A cap of zero or less
// disables throttling.
func Throttle(newestFirst []Notification, limit int) ThrottleResult {
	if len(newestFirst) == 0 {
		return ThrottleResult{}
	}
	if limit > 0 && len(newestFirst) > limit {
		return ThrottleResult{
			Dispatch:  []Notification{newestFirst[0]},
			Collapsed: true,
			Dropped:   len(newestFirst) - 1,
		}
	}
	out := slices.Clone(newestFirst)
	slices.Reverse(out)
	return ThrottleResult{Dispatch: out}
}
