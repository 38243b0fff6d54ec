// Package telemetry is the EdgeWatch core: it ingests detection and
// health events from edge devices, tracks device liveness, maintains the
// bounded event history and derived fleet status, and publishes ingested
// events for fan-out.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the telemetry plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	registry *Registry
	history  *History
	agg      *Aggregator
	archive  *EventStore
	pipeline *Pipeline
	bus      plugin.EventBus

	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new telemetry plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "telemetry",
		Version:     "0.1.0",
		Description: "Device telemetry ingestion, liveness tracking, and fleet aggregation",
		Required:    true,
		Roles:       []string{"telemetry"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal telemetry config: %w", err)
		}
	}
	if m.cfg.StaleAfter <= 0 {
		return fmt.Errorf("telemetry stale_after must be positive, got %s", m.cfg.StaleAfter)
	}
	if m.cfg.HistoryCapacity <= 0 {
		return fmt.Errorf("telemetry history_capacity must be positive, got %d", m.cfg.HistoryCapacity)
	}

	m.registry = NewRegistry(m.cfg.DegradedAfter, m.cfg.StaleAfter)
	m.history = NewHistory(m.cfg.HistoryCapacity)
	m.agg = NewAggregator()

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "telemetry", migrations()); err != nil {
			return fmt.Errorf("telemetry migrations: %w", err)
		}
		m.archive = NewEventStore(deps.Store.DB())
	}

	m.pipeline = NewPipeline(m.cfg, m.registry, m.history, m.agg, m.archive, m.bus, m.logger)

	m.logger.Info("telemetry module initialized",
		zap.Bool("auto_register", m.cfg.AutoRegister),
		zap.Duration("stale_after", m.cfg.StaleAfter),
		zap.Int("history_capacity", m.cfg.HistoryCapacity),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.startedAt = time.Now()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startSweep()
	m.startReconcile()
	m.startMaintenance()
	m.logger.Info("telemetry module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("telemetry module stopped")
	return nil
}

// Pipeline exposes the ingestion pipeline to peer modules (MQTT ingestion
// path) that receive events outside the HTTP surface.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}

// Registry exposes the device registry to peer modules (command routing
// checks device existence before queueing).
func (m *Module) Registry() *Registry {
	return m.registry
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"devices":        strconv.Itoa(m.registry.Len()),
			"history_events": strconv.Itoa(m.history.Len()),
		},
	}
}
