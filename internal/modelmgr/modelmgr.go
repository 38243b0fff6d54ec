// Package modelmgr tracks which detection models run on which devices
// and relays model lifecycle operations as control commands. Actual
// model serving happens on the devices; EdgeWatch only observes
// MODEL_LOADED events and forwards switch/reload requests.
package modelmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// commandQueuer relays control commands to devices. Satisfied by the
// command module.
type commandQueuer interface {
	Queue(ctx context.Context, cmd models.ControlCommand) (models.ControlCommand, error)
}

// deviceLister enumerates known devices for fleet-wide relays.
// Satisfied by the telemetry module's registry.
type deviceLister interface {
	List(now time.Time) []models.Device
}

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// Module implements the model manager plugin.
type Module struct {
	logger   *zap.Logger
	store    *ModelStore
	commands commandQueuer
	devices  deviceLister
}

// New creates a new model manager plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "modelmgr",
		Version:      "0.1.0",
		Description:  "Model lifecycle tracking and relay",
		Dependencies: []string{"telemetry", "command"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	if deps.Store == nil {
		return fmt.Errorf("modelmgr module requires the shared store")
	}
	if err := deps.Store.Migrate(context.Background(), "modelmgr", migrations()); err != nil {
		return fmt.Errorf("modelmgr migrations: %w", err)
	}
	m.store = NewModelStore(deps.Store.DB())

	if deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("command"); ok {
			if q, ok := p.(commandQueuer); ok {
				m.commands = q
			}
		}
		if p, ok := deps.Plugins.Resolve("telemetry"); ok {
			if tm, ok := p.(*telemetry.Module); ok {
				m.devices = tm.Registry()
			}
		}
	}
	if m.commands == nil {
		return fmt.Errorf("modelmgr module requires the command module")
	}
	if m.devices == nil {
		return fmt.Errorf("modelmgr module requires the telemetry module")
	}

	m.logger.Info("modelmgr module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop(_ context.Context) error { return nil }

// Subscriptions records MODEL_LOADED events as model load observations.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{
			Topic: telemetry.TopicModelLoaded,
			Handler: func(ctx context.Context, event plugin.Event) {
				e, ok := event.Payload.(models.DetectionEvent)
				if !ok {
					return
				}
				name := e.Metadata["model"]
				if name == "" {
					return
				}
				if err := m.store.RecordLoad(ctx, e.DeviceID, name, e.Timestamp); err != nil {
					m.logger.Warn("failed to record model load",
						zap.String("device_id", e.DeviceID),
						zap.String("model", name),
						zap.Error(err),
					)
				}
			},
		},
	}
}
