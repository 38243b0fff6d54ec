// Package ws streams ingested events and device status transitions to
// dashboard clients over WebSocket. Each subscriber gets its own bounded
// queue so a slow connection never stalls the rest.
package ws

import (
	"context"
	"fmt"

	"github.com/HerbHall/edgewatch/internal/auth"
	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// Module implements the WebSocket fan-out plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	hub    *Hub
}

// New creates a new WebSocket fan-out plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "ws",
		Version:      "0.1.0",
		Description:  "Real-time event fan-out over WebSocket",
		Dependencies: []string{"telemetry"},
		Roles:        []string{"fanout"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal ws config: %w", err)
		}
	}
	if m.cfg.QueueCapacity <= 0 {
		return fmt.Errorf("ws queue_capacity must be positive, got %d", m.cfg.QueueCapacity)
	}

	m.hub = NewHub(m.cfg.QueueCapacity, m.logger)
	m.logger.Info("ws module initialized",
		zap.Int("queue_capacity", m.cfg.QueueCapacity),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.hub.CloseAll()
	m.logger.Info("ws module stopped")
	return nil
}

// Subscriptions forwards ingested events and liveness transitions to the
// hub. The ingested-event topic is published synchronously by the
// pipeline, so subscribers observe ingestion order.
func (m *Module) Subscriptions() []plugin.Subscription {
	forwardDevice := func(_ context.Context, event plugin.Event) {
		device, ok := event.Payload.(models.Device)
		if !ok {
			return
		}
		m.hub.BroadcastDeviceStatus(device, event.Timestamp)
	}

	return []plugin.Subscription{
		{
			Topic: telemetry.TopicEventIngested,
			Handler: func(_ context.Context, event plugin.Event) {
				e, ok := event.Payload.(models.DetectionEvent)
				if !ok {
					return
				}
				m.hub.BroadcastEvent(e, event.Timestamp)
			},
		},
		{Topic: telemetry.TopicDeviceOnline, Handler: forwardDevice},
		{Topic: telemetry.TopicDeviceDegraded, Handler: forwardDevice},
		{Topic: telemetry.TopicDeviceOffline, Handler: forwardDevice},
	}
}

// Handler builds the HTTP handler for the WebSocket endpoint. Pass nil
// tokens to disable authentication.
func (m *Module) Handler(tokens *auth.TokenService) *Handler {
	return NewHandler(m.hub, tokens, m.cfg, m.logger)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"subscribers": fmt.Sprintf("%d", m.hub.SubscriberCount()),
		},
	}
}
