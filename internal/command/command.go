// Package command accepts control commands for edge devices, queues
// them per device, and announces them on the bus for delivery bridges.
// EdgeWatch validates and queues; execution is the device's problem.
package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicCommandQueued is published for every accepted command. The MQTT
// bridge relays these to the device's command topic.
const TopicCommandQueued = "command.queued"

// Config holds command dispatch settings.
type Config struct {
	// QueueCapacity bounds each device's pending command queue.
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// DefaultConfig returns the default command settings.
func DefaultConfig() Config {
	return Config{QueueCapacity: 32}
}

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the command plugin.
type Module struct {
	logger     *zap.Logger
	cfg        Config
	dispatcher *Dispatcher
	registry   *telemetry.Registry
	bus        plugin.EventBus
}

// New creates a new command plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "command",
		Version:      "0.1.0",
		Description:  "Device control command validation and queueing",
		Dependencies: []string{"telemetry"},
		Roles:        []string{"control"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal command config: %w", err)
		}
	}
	if m.cfg.QueueCapacity <= 0 {
		return fmt.Errorf("command queue_capacity must be positive, got %d", m.cfg.QueueCapacity)
	}

	if deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("telemetry"); ok {
			if tm, ok := p.(*telemetry.Module); ok {
				m.registry = tm.Registry()
			}
		}
	}
	if m.registry == nil {
		return fmt.Errorf("command module requires the telemetry module")
	}

	m.dispatcher = NewDispatcher(m.cfg.QueueCapacity)
	m.logger.Info("command module initialized",
		zap.Int("queue_capacity", m.cfg.QueueCapacity),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop(_ context.Context) error { return nil }

// Queue validates cmd, assigns it an ID, enqueues it for its device,
// and publishes it on the bus. A full queue drops the oldest pending
// command; that is not an error.
func (m *Module) Queue(ctx context.Context, cmd models.ControlCommand) (models.ControlCommand, error) {
	if cmd.DeviceID == "" {
		return models.ControlCommand{}, &telemetry.ValidationError{Field: "device_id", Detail: "must not be empty"}
	}
	if !cmd.Type.Valid() {
		return models.ControlCommand{}, &telemetry.ValidationError{
			Field:  "type",
			Detail: fmt.Sprintf("unknown command type %q", string(cmd.Type)),
		}
	}
	if _, known := m.registry.Get(cmd.DeviceID, time.Now()); !known {
		return models.ControlCommand{}, &UnknownDeviceError{DeviceID: cmd.DeviceID}
	}

	cmd.ID = uuid.NewString()
	cmd.QueuedAt = time.Now()

	if dropped := m.dispatcher.Enqueue(cmd); dropped > 0 {
		m.logger.Warn("device command queue full, dropped oldest",
			zap.String("device_id", cmd.DeviceID),
		)
	}
	if m.bus != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicCommandQueued,
			Source:    "command",
			Timestamp: cmd.QueuedAt,
			Payload:   cmd,
		})
	}

	m.logger.Info("queued control command",
		zap.String("command_id", cmd.ID),
		zap.String("device_id", cmd.DeviceID),
		zap.String("type", string(cmd.Type)),
	)
	return cmd, nil
}

// UnknownDeviceError reports a command aimed at a device the registry
// has never seen. Maps to HTTP 404.
type UnknownDeviceError struct {
	DeviceID string
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device %q", e.DeviceID)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"queue_capacity": strconv.Itoa(m.cfg.QueueCapacity),
		},
	}
}
