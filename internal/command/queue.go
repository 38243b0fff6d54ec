package command

import (
	"sync"

	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch metrics.
var (
	commandsQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "command_queued_total",
			Help: "Total number of control commands accepted for delivery.",
		},
	)
	commandsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "command_dropped_total",
			Help: "Total number of control commands dropped from full device queues.",
		},
	)
)

func init() {
	prometheus.MustRegister(commandsQueuedTotal)
	prometheus.MustRegister(commandsDroppedTotal)
}

// deviceQueue is one device's pending command list.
type deviceQueue struct {
	pending []models.ControlCommand
	dropped uint64
}

// Dispatcher holds per-device bounded command queues. Enqueue never
// blocks and never fails: a full queue drops its oldest pending command,
// on the theory that a stale control instruction is worse than a lost
// one.
type Dispatcher struct {
	mu       sync.Mutex
	queues   map[string]*deviceQueue
	queueCap int
}

// NewDispatcher creates a dispatcher whose device queues hold up to
// queueCap pending commands each.
func NewDispatcher(queueCap int) *Dispatcher {
	if queueCap <= 0 {
		queueCap = 32
	}
	return &Dispatcher{
		queues:   make(map[string]*deviceQueue),
		queueCap: queueCap,
	}
}

// Enqueue appends cmd to its device's queue, evicting the oldest pending
// command if full. Returns how many commands were dropped to make room.
func (d *Dispatcher) Enqueue(cmd models.ControlCommand) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[cmd.DeviceID]
	if q == nil {
		q = &deviceQueue{}
		d.queues[cmd.DeviceID] = q
	}

	dropped := 0
	if len(q.pending) >= d.queueCap {
		copy(q.pending, q.pending[1:])
		q.pending = q.pending[:len(q.pending)-1]
		q.dropped++
		dropped++
		commandsDroppedTotal.Inc()
	}
	q.pending = append(q.pending, cmd)
	commandsQueuedTotal.Inc()
	return dropped
}

// Drain removes and returns all pending commands for deviceID in queue
// order. Devices poll this as their delivery channel when no broker
// path is configured.
func (d *Dispatcher) Drain(deviceID string) []models.ControlCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[deviceID]
	if q == nil || len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	return out
}

// Pending returns the number of queued commands for deviceID.
func (d *Dispatcher) Pending(deviceID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.queues[deviceID]; q != nil {
		return len(q.pending)
	}
	return 0
}

// Dropped returns how many commands deviceID's queue has lost to
// overflow.
func (d *Dispatcher) Dropped(deviceID string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q := d.queues[deviceID]; q != nil {
		return q.dropped
	}
	return 0
}
