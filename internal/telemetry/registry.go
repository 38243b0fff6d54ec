package telemetry

import (
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
)

// DevicePatch carries the fields of a device record that an incoming
// event may update. Nil/zero fields leave the stored value untouched.
type DevicePatch struct {
	Name            string
	FirmwareVersion string
	Capabilities    []string
	Metrics         *models.DeviceMetrics
	CurrentModel    string
}

// Transition records a device status change produced by a liveness sweep.
type Transition struct {
	Device models.Device
	From   models.DeviceStatus
	To     models.DeviceStatus
}

// Registry is the single owner of device state. All mutation goes through
// Upsert and SweepStale; readers receive copies, never shared pointers.
// Liveness is also applied lazily on read, so a silent device reads as
// degraded/offline even between sweeps.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
	order   []string // insertion order, stable across calls

	degradedAfter time.Duration
	staleAfter    time.Duration
}

// NewRegistry creates an empty device registry with the given liveness
// thresholds. A zero degradedAfter disables the soft threshold.
func NewRegistry(degradedAfter, staleAfter time.Duration) *Registry {
	return &Registry{
		devices:       make(map[string]*models.Device),
		degradedAfter: degradedAfter,
		staleAfter:    staleAfter,
	}
}

// Upsert merges patch into the stored record for id, creating it on first
// contact, and stamps lastSeen with now (arrival order wins; embedded event
// timestamps are not consulted). Returns a copy of the updated record and
// whether the device was newly registered.
func (r *Registry) Upsert(id string, patch DevicePatch, now time.Time) (models.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	created := false
	if !ok {
		d = &models.Device{
			ID:        id,
			Name:      id,
			FirstSeen: now,
		}
		r.devices[id] = d
		r.order = append(r.order, id)
		created = true
	}

	if patch.Name != "" {
		d.Name = patch.Name
	}
	if patch.FirmwareVersion != "" {
		d.FirmwareVersion = patch.FirmwareVersion
	}
	if len(patch.Capabilities) > 0 {
		d.Capabilities = append([]string(nil), patch.Capabilities...)
	}
	if patch.Metrics != nil {
		d.Metrics = *patch.Metrics
	}
	if patch.CurrentModel != "" {
		d.CurrentModel = patch.CurrentModel
	}
	d.Status = models.DeviceStatusOnline
	d.LastSeen = now

	return *d, created
}

// Get returns a copy of the device record for id with lazy liveness applied.
func (r *Registry) Get(id string, now time.Time) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return models.Device{}, false
	}
	out := *d
	out.Status = r.effectiveStatus(d, now)
	return out, true
}

// List returns copies of all devices in insertion order with lazy
// liveness applied.
func (r *Registry) List(now time.Time) []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Device, 0, len(r.order))
	for _, id := range r.order {
		d := r.devices[id]
		c := *d
		c.Status = r.effectiveStatus(d, now)
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// SweepStale persists liveness transitions: devices silent past the hard
// threshold are marked offline, and past the soft threshold degraded.
// Returns the transitions applied, in insertion order.
func (r *Registry) SweepStale(now time.Time) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transitions []Transition
	for _, id := range r.order {
		d := r.devices[id]
		next := r.effectiveStatus(d, now)
		if next == d.Status {
			continue
		}
		t := Transition{From: d.Status, To: next}
		d.Status = next
		t.Device = *d
		transitions = append(transitions, t)
	}
	return transitions
}

// effectiveStatus derives the liveness-adjusted status for d at time now.
// Callers must hold at least a read lock.
func (r *Registry) effectiveStatus(d *models.Device, now time.Time) models.DeviceStatus {
	silent := now.Sub(d.LastSeen)
	if silent >= r.staleAfter {
		return models.DeviceStatusOffline
	}
	if r.degradedAfter > 0 && silent >= r.degradedAfter && d.Status == models.DeviceStatusOnline {
		return models.DeviceStatusDegraded
	}
	return d.Status
}
