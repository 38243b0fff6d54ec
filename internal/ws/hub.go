package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Fan-out metrics.
var (
	wsSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_subscribers",
			Help: "Number of connected WebSocket subscribers.",
		},
	)
	wsMessagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_messages_queued_total",
			Help: "Total number of messages queued for delivery to subscribers.",
		},
	)
	wsMessagesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_messages_dropped_total",
			Help: "Total number of undelivered messages dropped from full subscriber queues.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsSubscribers)
	prometheus.MustRegister(wsMessagesSentTotal)
	prometheus.MustRegister(wsMessagesDroppedTotal)
}

// ErrSubscriberClosed is returned by Next once the subscriber has been
// removed from the hub.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Filter restricts which ingested events a subscriber receives. Zero
// fields match everything. Device status messages honor DeviceID only.
type Filter struct {
	DeviceID string
	Severity models.Severity
}

func (f Filter) matchesEvent(e models.DetectionEvent) bool {
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	return true
}

func (f Filter) matchesDevice(d models.Device) bool {
	return f.DeviceID == "" || d.ID == f.DeviceID
}

// Subscriber is one bounded fan-out queue. A slow reader only loses its
// own messages: when the queue is full the OLDEST undelivered message is
// dropped to make room, so the reader always converges on recent state.
type Subscriber struct {
	filter Filter

	mu             sync.Mutex
	queue          []Message
	cap            int
	notify         chan struct{}
	closed         bool
	dropped        uint64
	droppedPending uint64 // losses not yet reported on an envelope
}

// push enqueues msg, evicting the oldest undelivered message if full.
// Never blocks.
func (s *Subscriber) push(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.cap {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		s.dropped++
		s.droppedPending++
		wsMessagesDroppedTotal.Inc()
	}
	s.queue = append(s.queue, msg)
	wsMessagesSentTotal.Inc()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available, the context ends, or the
// subscriber is closed. Messages come out in the order they were
// queued; the envelope carries the losses since the last delivery.
func (s *Subscriber) Next(ctx context.Context) (Message, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			msg.Dropped = s.droppedPending
			s.droppedPending = 0
			s.mu.Unlock()
			return msg, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Message{}, ErrSubscriberClosed
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Dropped returns how many undelivered messages this subscriber has lost.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Hub fans ingested events out to WebSocket subscribers. Broadcast never
// blocks on any subscriber, so one stalled connection cannot delay the
// rest of the fleet view.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*Subscriber]struct{}
	queueCap int
	logger   *zap.Logger
}

// NewHub creates a hub whose subscribers buffer up to queueCap messages.
func NewHub(queueCap int, logger *zap.Logger) *Hub {
	if queueCap <= 0 {
		queueCap = 256
	}
	return &Hub{
		subs:     make(map[*Subscriber]struct{}),
		queueCap: queueCap,
		logger:   logger,
	}
}

// Subscribe registers a new subscriber with the given filter.
func (h *Hub) Subscribe(f Filter) *Subscriber {
	s := &Subscriber{
		filter: f,
		cap:    h.queueCap,
		notify: make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	wsSubscribers.Inc()
	h.logger.Debug("websocket subscriber registered",
		zap.String("device_filter", f.DeviceID),
		zap.String("severity_filter", string(f.Severity)),
	)
	return s
}

// Unsubscribe removes a subscriber and wakes any blocked Next call.
// Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, present := h.subs[s]
	if present {
		delete(h.subs, s)
	}
	h.mu.Unlock()
	if !present {
		return
	}
	s.close()
	wsSubscribers.Dec()
	if dropped := s.Dropped(); dropped > 0 {
		h.logger.Info("websocket subscriber disconnected",
			zap.Uint64("dropped_messages", dropped),
		)
	}
}

// BroadcastEvent delivers an ingested event to every matching subscriber.
func (h *Hub) BroadcastEvent(e models.DetectionEvent, at time.Time) {
	msg := Message{Type: MessageEvent, Timestamp: at, Data: e}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.filter.matchesEvent(e) {
			s.push(msg)
		}
	}
}

// BroadcastDeviceStatus delivers a liveness transition to every matching
// subscriber.
func (h *Hub) BroadcastDeviceStatus(d models.Device, at time.Time) {
	msg := Message{
		Type:      MessageDeviceStatus,
		Timestamp: at,
		Data:      DeviceStatusData{Device: d, Status: d.Status},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.filter.matchesDevice(d) {
			s.push(msg)
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll unsubscribes every subscriber. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
		wsSubscribers.Dec()
	}
}
