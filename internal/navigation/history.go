package navigation

// History is a browser-like stack of visited locations with a cursor. The zero value is an
// empty history.
type History struct {
	entries []string
	index   int
	started bool
}

// Push adds a location after the current entry and drops all forward entries.
func (h *History) Push(location string) {
	if !h.started {
		h.entries = []string{location}
		h.index = 0
		h.started = true
		return
	}
	h.entries = append(h.entries[:h.index+1], location)
	h.index++
}

// Replace overwrites the current entry. On an empty history it behaves like Push.
func (h *History) Replace(location string) {
	if !h.started {
		h.Push(location)
		return
	}
	h.entries[h.index] = location
}

// Peek returns the location delta steps away from the cursor without moving it.
func (h *History) Peek(delta int) (string, bool) {
	i := h.index + delta
	if !h.started || i < 0 || i >= len(h.entries) {
		return "", false
	}
	return h.entries[i], true
}

// Go moves the cursor by delta steps. It reports false and leaves the cursor alone if the target
// is out of range.
func (h *History) Go(delta int) bool {
	if _, ok := h.Peek(delta); !ok {
		return false
	}
	h.index += delta
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of all entries and the cursor position.
func (h *History) Entries() ([]string, int) {
	return append([]string(nil), h.entries...), h.index
}
