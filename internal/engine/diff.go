package engine

import (
	"dynwatch/internal/dynamic"
	"dynwatch/internal/subscription"
)

// DiffResult is the outcome of scanning a feed against dedup state.
type DiffResult struct {
	// Candidates are unseen, non-pinned items, newest first.
	Candidates []dynamic.RawItem
	// Watermark is the newest candidate id, empty when there are none.
	Watermark string
	// Recent is the updated window, newest first. Nil when nothing changed.
	Recent []string
	// Exhausted is set when the scan reached the end of the feed without
	// meeting a known id, meaning older unseen items may have been missed.
	Exhausted bool
}

// Diff walks a newest-first feed and stops at the first non-pinned item that
// is already known. Pinned items are skipped without ending the scan and are
// never candidates. Items without an id cannot be tracked and are ignored.
func Diff(feed []dynamic.RawItem, state subscription.DedupState) DiffResult {
	var res DiffResult
	seen := make(map[string]struct{}, len(feed))
	bounded := false
	for _, item := range feed {
		if item.ID == "" || item.Pinned() {
			continue
		}
		if state.Known(item.ID) {
			bounded = true
			break
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		res.Candidates = append(res.Candidates, item)
	}
	res.Exhausted = !bounded && len(res.Candidates) > 0
	if len(res.Candidates) == 0 {
		return res
	}
	res.Watermark = res.Candidates[0].ID
	window := subscription.NewRecentWindow(state.Capacity, state.Recent)
	for i := len(res.Candidates) - 1; i >= 0; i-- {
		window.Push(res.Candidates[i].ID)
	}
	res.Recent = window.IDs()
	return res
}
