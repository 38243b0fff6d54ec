// Package mqtt bridges edge devices that speak MQTT into EdgeWatch.
// Device events arriving on edge/{id}/events go through the same
// ingestion pipeline as HTTP posts; queued control commands go back out
// on edge/{id}/command.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/HerbHall/edgewatch/internal/command"
	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// Module implements the MQTT bridge plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	pipeline *telemetry.Pipeline
	mu       sync.RWMutex
	client   pahomqtt.Client
}

// New creates a new MQTT bridge plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "mqtt",
		Version:      "0.1.0",
		Description:  "MQTT ingest and command delivery bridge",
		Dependencies: []string{"telemetry"},
		Roles:        []string{"ingest", "integration"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal mqtt config: %w", err)
		}
	}

	if deps.Plugins != nil {
		if p, ok := deps.Plugins.Resolve("telemetry"); ok {
			if tm, ok := p.(*telemetry.Module); ok {
				m.pipeline = tm.Pipeline()
			}
		}
	}
	if m.pipeline == nil {
		return fmt.Errorf("mqtt module requires the telemetry module")
	}

	if m.cfg.Broker == "" {
		m.logger.Info("mqtt module initialized (no broker configured, bridge disabled)")
		return nil
	}
	m.logger.Info("mqtt module initialized",
		zap.String("broker", m.cfg.Broker),
		zap.String("client_id", m.cfg.ClientID),
		zap.String("event_topic", m.cfg.EventTopic),
		zap.Uint8("qos", m.cfg.QoS),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.cfg.Broker == "" {
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(m.cfg.Timeout).
		SetOnConnectHandler(m.onConnect)

	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	token := client.Connect()
	switch {
	case !token.WaitTimeout(m.cfg.Timeout):
		m.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		m.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		m.logger.Info("mqtt connected to broker", zap.String("broker", m.cfg.Broker))
	}
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

// onConnect (re)subscribes to the device event topic. Runs on every
// connection, including automatic reconnects.
func (m *Module) onConnect(client pahomqtt.Client) {
	token := client.Subscribe(m.cfg.EventTopic, m.cfg.QoS, m.handleDeviceMessage)
	if !token.WaitTimeout(m.cfg.Timeout) || token.Error() != nil {
		m.logger.Error("mqtt subscribe failed",
			zap.String("topic", m.cfg.EventTopic),
			zap.Error(token.Error()),
		)
		return
	}
	m.logger.Info("mqtt subscribed to device events",
		zap.String("topic", m.cfg.EventTopic),
	)
}

// handleDeviceMessage ingests one device-published event. Paho
// dispatches callbacks for a topic in arrival order, so per-device
// ordering survives the bridge.
func (m *Module) handleDeviceMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	var raw models.DetectionEvent
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		m.logger.Warn("dropping malformed mqtt event payload",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
		return
	}

	// The topic names the device: edge/{device_id}/events. The embedded
	// device_id wins if present.
	if raw.DeviceID == "" {
		raw.DeviceID = deviceIDFromTopic(msg.Topic())
	}

	if _, err := m.pipeline.Ingest(context.Background(), raw); err != nil {
		m.logger.Warn("mqtt event rejected by ingestion",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
	}
}

// Subscriptions relays queued control commands out to devices.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: command.TopicCommandQueued, Handler: m.publishCommand},
	}
}

// publishCommand delivers a queued command to its device's command topic.
func (m *Module) publishCommand(_ context.Context, event plugin.Event) {
	cmd, ok := event.Payload.(models.ControlCommand)
	if !ok {
		return
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		m.logger.Warn("failed to marshal command payload",
			zap.String("command_id", cmd.ID),
			zap.Error(err),
		)
		return
	}

	topic := fmt.Sprintf("%s/%s/command", m.cfg.CommandTopicPrefix, cmd.DeviceID)
	token := client.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.Timeout) {
		m.logger.Warn("mqtt command publish timed out", zap.String("topic", topic))
		return
	}
	if token.Error() != nil {
		m.logger.Warn("mqtt command publish failed",
			zap.String("topic", topic),
			zap.Error(token.Error()),
		)
		return
	}
	m.logger.Debug("mqtt command published",
		zap.String("topic", topic),
		zap.String("command_id", cmd.ID),
	)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.cfg.Broker == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no broker configured (bridge disabled)",
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil || !m.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + m.cfg.Broker,
	}
}

// deviceIDFromTopic extracts the device id from edge/{id}/events.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
