package telemetry

import (
	"sync"

	"github.com/HerbHall/edgewatch/pkg/models"
)

// EventFilter narrows the events returned by History.Recent. Zero values
// match everything.
type EventFilter struct {
	Limit    int
	DeviceID string
	Severity models.Severity
	Type     models.EventType
}

// History is a bounded ring buffer of recently ingested events in arrival
// order. Once capacity is reached the oldest entry is evicted first.
type History struct {
	mu   sync.RWMutex
	buf  []models.DetectionEvent
	head int // next write position
	size int
}

// NewHistory creates a history buffer holding at most capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{buf: make([]models.DetectionEvent, capacity)}
}

// Append adds an event. If the buffer is full the oldest entry is evicted
// and returned so callers can unwind its contribution elsewhere.
func (h *History) Append(e models.DetectionEvent) *models.DetectionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var evicted *models.DetectionEvent
	if h.size == len(h.buf) {
		old := h.buf[h.head]
		evicted = &old
	}
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
	return evicted
}

// Len returns the number of buffered events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the buffer's fixed capacity.
func (h *History) Capacity() int {
	return len(h.buf)
}

// Snapshot returns a copy of the buffered events in arrival order,
// oldest first.
func (h *History) Snapshot() []models.DetectionEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.DetectionEvent, 0, h.size)
	start := h.head - h.size
	if start < 0 {
		start += len(h.buf)
	}
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

// Recent returns buffered events most-recent-first, after applying the
// filter predicates and truncating to filter.Limit.
func (h *History) Recent(filter EventFilter) []models.DetectionEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = h.size
	}

	out := make([]models.DetectionEvent, 0, limit)
	for i := 1; i <= h.size && len(out) < limit; i++ {
		idx := h.head - i
		if idx < 0 {
			idx += len(h.buf)
		}
		e := h.buf[idx]
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, e)
	}
	return out
}
