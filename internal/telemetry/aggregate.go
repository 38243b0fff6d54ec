package telemetry

import (
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
)

// isAlert reports whether an event kind contributes to alert tallies.
// Health updates and model-load notifications are operational telemetry,
// not alerts, regardless of their severity field.
func isAlert(t models.EventType) bool {
	return t == models.EventDetectionAlert || t == models.EventSystemError
}

// Aggregator maintains incremental per-severity alert counters so that
// status queries stay O(1) per ingested event. The counters track the
// history buffer's contents: Record on ingest, Reconcile to rebuild from
// a buffer snapshot when drift is suspected.
type Aggregator struct {
	mu     sync.RWMutex
	alerts models.AlertCounts
}

// NewAggregator creates an aggregator with zeroed counters.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record updates the alert tallies for a newly ingested event. evicted is
// the event displaced from the history buffer by this ingest, if any; its
// contribution is removed so the counters keep tracking buffer contents.
func (a *Aggregator) Record(e models.DetectionEvent, evicted *models.DetectionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if isAlert(e.Type) {
		a.add(e.Severity, 1)
	}
	if evicted != nil && isAlert(evicted.Type) {
		a.add(evicted.Severity, -1)
	}
}

// Alerts returns a copy of the current alert tallies.
func (a *Aggregator) Alerts() models.AlertCounts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.alerts
}

// Reconcile rebuilds the counters from a full history snapshot. This is
// the correctness safety net for counter drift, not the hot path.
func (a *Aggregator) Reconcile(events []models.DetectionEvent) {
	var fresh models.AlertCounts
	for _, e := range events {
		if !isAlert(e.Type) {
			continue
		}
		switch e.Severity {
		case models.SeverityCritical:
			fresh.Critical++
		case models.SeverityWarning:
			fresh.Warning++
		case models.SeverityInfo:
			fresh.Info++
		}
	}

	a.mu.Lock()
	a.alerts = fresh
	a.mu.Unlock()
}

// add adjusts a severity counter, clamping at zero. Counters never go
// negative even if eviction accounting drifts.
func (a *Aggregator) add(s models.Severity, delta int) {
	var c *int
	switch s {
	case models.SeverityCritical:
		c = &a.alerts.Critical
	case models.SeverityWarning:
		c = &a.alerts.Warning
	case models.SeverityInfo:
		c = &a.alerts.Info
	default:
		return
	}
	*c += delta
	if *c < 0 {
		*c = 0
	}
}

// Status assembles the full SystemStatus view from the registry snapshot
// and the incremental alert counters. Edge metrics are computed by scanning
// the (small) device list; connected devices are those not offline.
func Status(devices []models.Device, alerts models.AlertCounts, startedAt, now time.Time) models.SystemStatus {
	var edge models.EdgeSummary
	var npuSum, tempSum float64
	for _, d := range devices {
		if d.Status == models.DeviceStatusOffline {
			continue
		}
		edge.ConnectedDevices++
		edge.TotalFPS += d.Metrics.FPS
		npuSum += d.Metrics.NPUUsage
		tempSum += d.Metrics.TemperatureC
	}
	if edge.ConnectedDevices > 0 {
		edge.AvgNPUUsage = npuSum / float64(edge.ConnectedDevices)
		edge.AvgTemperature = tempSum / float64(edge.ConnectedDevices)
	}

	return models.SystemStatus{
		Edge:   edge,
		Alerts: alerts,
		Uptime: now.Sub(startedAt).Seconds(),
	}
}
