package subscription

// RecentWindow is a bounded, insertion-ordered set of ids. Pushing into a
// full window evicts the oldest id.
type RecentWindow struct {
	buf  []string
	head int // index of the oldest entry
	size int
	set  map[string]struct{}
}

// NewRecentWindow builds a window of the given capacity seeded from a
// newest-first id list. Only the newest capacity ids are kept.
func NewRecentWindow(capacity int, newestFirst []string) *RecentWindow {
	if capacity < 1 {
		capacity = 1
	}
	w := &RecentWindow{
		buf: make([]string, capacity),
		set: make(map[string]struct{}, capacity),
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		w.Push(newestFirst[i])
	}
	return w
}

// Push records id as the newest entry. Empty and already-present ids are ignored.
func (w *RecentWindow) Push(id string) {
	if id == "" {
		return
	}
	if _, ok := w.set[id]; ok {
		return
	}
	if w.size == len(w.buf) {
		delete(w.set, w.buf[w.head])
		w.buf[w.head] = id
		w.head = (w.head + 1) % len(w.buf)
	} else {
		w.buf[(w.head+w.size)%len(w.buf)] = id
		w.size++
	}
	w.set[id] = struct{}{}
}

func (w *RecentWindow) Contains(id string) bool {
	_, ok := w.set[id]
	return ok
}

func (w *RecentWindow) Len() int { return w.size }

func (w *RecentWindow) Cap() int { return len(w.buf) }

// IDs returns the window contents newest first.
func (w *RecentWindow) IDs() []string {
	out := make([]string, 0, w.size)
	for i := w.size - 1; i >= 0; i-- {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}
