package client

import (
	"sync"

	"firestige.xyz/netscope/internal/core"
)

// DefaultHistorySize bounds the rolling record history.
const DefaultHistorySize = 1000

// History keeps the most recent records, newest first. The oldest record is
// evicted once capacity is reached.
type History struct {
	mu    sync.RWMutex
	buf   []core.WireRecord
	start int // Index of the oldest record
	n     int
}

// NewHistory creates a history holding up to capacity records.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]core.WireRecord, capacity)}
}

// Add appends a record, evicting the oldest when full.
func (h *History) Add(r core.WireRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = r
		h.n++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Clear drops every record.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.buf)
	h.start, h.n = 0, 0
}

// Select returns matching records, newest first.
func (h *History) Select(f Filter) []core.WireRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.WireRecord, 0, h.n)
	for i := h.n - 1; i >= 0; i-- {
		r := h.buf[(h.start+i)%len(h.buf)]
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
