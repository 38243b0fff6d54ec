// Package webhook pushes high-severity events to an external HTTP
// endpoint (pager bridge, chat integration). Delivery is best-effort:
// failures are logged and never retried, and ingestion never waits on
// the remote end.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Config holds webhook notifier settings. An empty URL disables the
// notifier.
type Config struct {
	URL           string          `mapstructure:"url"`
	Timeout       time.Duration   `mapstructure:"timeout"`
	MinSeverity   models.Severity `mapstructure:"min_severity"`
	QueueCapacity int             `mapstructure:"queue_capacity"`
}

// DefaultConfig returns the default webhook settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		MinSeverity:   models.SeverityCritical,
		QueueCapacity: 64,
	}
}

// severityRank orders severities for threshold comparison.
func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityInfo:
		return 0
	case models.SeverityWarning:
		return 1
	case models.SeverityCritical:
		return 2
	}
	return -1
}

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// Module implements the webhook notifier plugin. Bus handlers only
// enqueue; a dedicated worker performs the HTTP deliveries so a slow
// endpoint never backs up into the publisher.
type Module struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client

	queue chan models.DetectionEvent
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a new webhook notifier plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "webhook",
		Version:      "0.1.0",
		Description:  "Pushes high-severity events to an external webhook",
		Dependencies: []string{"telemetry"},
		Roles:        []string{"notification"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal webhook config: %w", err)
		}
	}
	if m.cfg.MinSeverity != "" && !m.cfg.MinSeverity.Valid() {
		return fmt.Errorf("webhook min_severity %q is not a known severity", m.cfg.MinSeverity)
	}

	m.client = &http.Client{Timeout: m.cfg.Timeout}

	if m.cfg.URL == "" {
		m.logger.Info("webhook module initialized (no URL configured, notifier disabled)")
	} else {
		m.logger.Info("webhook module initialized",
			zap.String("url", m.cfg.URL),
			zap.String("min_severity", string(m.cfg.MinSeverity)),
		)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.cfg.URL == "" {
		return nil
	}
	if m.queue == nil {
		capacity := m.cfg.QueueCapacity
		if capacity <= 0 {
			capacity = DefaultConfig().QueueCapacity
		}
		m.queue = make(chan models.DetectionEvent, capacity)
	}
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.deliverLoop()
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.done != nil {
		close(m.done)
		m.wg.Wait()
		m.done = nil
	}
	return nil
}

// Subscriptions queues qualifying ingested events for delivery.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{
			Topic: telemetry.TopicEventIngested,
			Handler: func(_ context.Context, event plugin.Event) {
				e, ok := event.Payload.(models.DetectionEvent)
				if !ok {
					return
				}
				m.enqueue(e)
			},
		},
	}
}

// enqueue hands an event to the delivery worker without blocking the
// caller. When the queue is full the event is dropped: delivery is
// best-effort and the publisher must never wait on the remote end.
func (m *Module) enqueue(e models.DetectionEvent) {
	if m.cfg.URL == "" || m.queue == nil {
		return
	}
	if severityRank(e.Severity) < severityRank(m.cfg.MinSeverity) {
		return
	}
	select {
	case m.queue <- e:
	default:
		m.logger.Warn("webhook queue full, dropping event",
			zap.String("event_id", e.ID),
		)
	}
}

// deliverLoop drains the queue until Stop.
func (m *Module) deliverLoop() {
	defer m.wg.Done()
	for {
		select {
		case e := <-m.queue:
			m.Notify(context.Background(), e)
		case <-m.done:
			return
		}
	}
}

// Notify posts e to the configured URL if it clears the severity
// threshold. Errors are logged, never returned to the caller.
func (m *Module) Notify(ctx context.Context, e models.DetectionEvent) {
	if m.cfg.URL == "" {
		return
	}
	if severityRank(e.Severity) < severityRank(m.cfg.MinSeverity) {
		return
	}

	body, err := json.Marshal(e)
	if err != nil {
		m.logger.Warn("failed to marshal webhook payload",
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		m.logger.Warn("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("webhook delivery failed",
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		m.logger.Warn("webhook endpoint rejected event",
			zap.String("event_id", e.ID),
			zap.Int("status", resp.StatusCode),
		)
		return
	}
	m.logger.Debug("webhook delivered",
		zap.String("event_id", e.ID),
		zap.String("severity", string(e.Severity)),
	)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.cfg.URL == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no URL configured (notifier disabled)",
		}
	}
	return plugin.HealthStatus{Status: "healthy"}
}
