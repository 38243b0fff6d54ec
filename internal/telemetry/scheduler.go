package telemetry

import (
	"context"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// startSweep launches the periodic liveness sweep. Devices silent past
// the configured thresholds are transitioned degraded/offline and the
// transitions are published on the bus.
func (m *Module) startSweep() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runSweep()
			}
		}
	}()
}

// runSweep executes a single liveness sweep cycle.
func (m *Module) runSweep() {
	transitions := m.registry.SweepStale(time.Now())
	for _, t := range transitions {
		m.logger.Info("device liveness transition",
			zap.String("device_id", t.Device.ID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
		)
		if m.bus == nil {
			continue
		}
		topic := TopicDeviceDegraded
		if t.To == models.DeviceStatusOffline {
			topic = TopicDeviceOffline
		} else if t.To == models.DeviceStatusOnline {
			topic = TopicDeviceOnline
		}
		m.bus.PublishAsync(m.ctx, plugin.Event{
			Topic:     topic,
			Source:    "telemetry",
			Timestamp: time.Now(),
			Payload:   t.Device,
		})
	}
}

// startReconcile launches the periodic counter reconciliation. The
// incremental alert tallies are rebuilt from a full history snapshot to
// recover from any drift.
func (m *Module) startReconcile() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				before := m.agg.Alerts()
				m.agg.Reconcile(m.history.Snapshot())
				if after := m.agg.Alerts(); after != before {
					m.logger.Warn("alert counters drifted, reconciled",
						zap.Int("critical", after.Critical),
						zap.Int("warning", after.Warning),
						zap.Int("info", after.Info),
					)
				}
			}
		}
	}()
}

// startMaintenance launches the periodic archive pruning task.
func (m *Module) startMaintenance() {
	if m.archive == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

// runMaintenance executes a single archive pruning cycle.
func (m *Module) runMaintenance() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.cfg.RetentionPeriod)
	deleted, err := m.archive.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to prune event archive", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("pruned event archive", zap.Int64("count", deleted))
	}
}
