package view

import "sync"

// History is an ordered list of visited URLs with a cursor. Native backends
// that do not expose their own history keep one of these up to date from
// their navigation callbacks.
type History struct {
	mu      sync.Mutex
	entries []string
	active  int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{active: -1}
}

// Push records a new navigation. Entries ahead of the cursor are dropped.
func (h *History) Push(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active >= 0 && h.active < len(h.entries) && h.entries[h.active] == url {
		return
	}
	h.entries = append(h.entries[:h.active+1], url)
	h.active = len(h.entries) - 1
}

// Replace overwrites the active entry, used for same-document navigations.
func (h *History) Replace(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active < 0 {
		h.entries = []string{url}
		h.active = 0
		return
	}
	h.entries[h.active] = url
}

// Clear empties the history so the next navigation becomes the only entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.active = -1
}

// Back moves the cursor one entry back and returns the new active URL.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active <= 0 {
		return "", false
	}
	h.active--
	return h.entries[h.active], true
}

// Forward moves the cursor one entry forward and returns the new active URL.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active < 0 || h.active >= len(h.entries)-1 {
		return "", false
	}
	h.active++
	return h.entries[h.active], true
}

func (h *History) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active > 0
}

func (h *History) CanGoForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active >= 0 && h.active < len(h.entries)-1
}

// ActiveIndex returns the cursor position, -1 when empty.
func (h *History) ActiveIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// EntryAt returns the URL at index i.
func (h *History) EntryAt(i int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.entries) {
		return "", false
	}
	return h.entries[i], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of all entries.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}
