package widget

import (
	"strings"
	"sync"
)

// Navigator exposes the current URL query and pushes new entries.
type Navigator interface {
	// Location returns the raw query of the current entry, without "?".
	Location() string
	// Navigate pushes a new entry with rawQuery.
	Navigate(rawQuery string)
}

// History is an in-memory browser history of query strings.
type History struct {
	mu      sync.Mutex
	entries []string
	pos     int
}

// NewHistory starts a history at rawQuery.
func NewHistory(rawQuery string) *History {
	return &History{entries: []string{trimQuery(rawQuery)}}
}

func trimQuery(rawQuery string) string {
	return strings.TrimPrefix(rawQuery, "?")
}

// Location implements Navigator.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[h.pos]
}

// Navigate implements Navigator. Forward entries are discarded.
func (h *History) Navigate(rawQuery string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		h.entries = []string{trimQuery(rawQuery)}
		h.pos = 0
		return
	}
	h.entries = append(h.entries[:h.pos+1], trimQuery(rawQuery))
	h.pos++
}

// Back moves one entry back and reports whether it moved.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == 0 {
		return false
	}
	h.pos--
	return true
}

// Forward moves one entry forward and reports whether it moved.
func (h *History) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos >= len(h.entries)-1 {
		return false
	}
	h.pos++
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
