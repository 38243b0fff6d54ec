package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Ingestion metrics.
var (
	eventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_ingested_total",
			Help: "Total number of successfully ingested telemetry events.",
		},
		[]string{"type", "severity"},
	)
	ingestErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_ingest_errors_total",
			Help: "Total number of events rejected by ingestion validation.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsIngestedTotal)
	prometheus.MustRegister(ingestErrorsTotal)
}

// Pipeline validates and normalizes incoming device events, then applies
// their side effects (registry upsert, history append, aggregation update,
// archive insert, bus publish) as one serialized step. Serializing the
// whole ingest keeps per-subscriber fan-out order equal to ingestion order.
type Pipeline struct {
	cfg      Config
	registry *Registry
	history  *History
	agg      *Aggregator
	archive  *EventStore // nil when no database is configured
	bus      plugin.EventBus
	logger   *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewPipeline wires an ingestion pipeline. archive and bus may be nil.
func NewPipeline(cfg Config, registry *Registry, history *History, agg *Aggregator, archive *EventStore, bus plugin.EventBus, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		history:  history,
		agg:      agg,
		archive:  archive,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest validates raw and, on success, applies all side effects and
// returns the normalized immutable event. On failure it returns a
// *ValidationError and leaves all state untouched.
func (p *Pipeline) Ingest(ctx context.Context, raw models.DetectionEvent) (models.DetectionEvent, error) {
	if err := p.validate(raw); err != nil {
		ingestErrorsTotal.Inc()
		return models.DetectionEvent{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	if _, known := p.registry.Get(raw.DeviceID, now); !known && !p.cfg.AutoRegister {
		ingestErrorsTotal.Inc()
		return models.DetectionEvent{}, &ValidationError{
			Field:  "device_id",
			Detail: fmt.Sprintf("unknown device %q and auto-registration is disabled", raw.DeviceID),
		}
	}

	event := p.normalize(raw, now)

	// Registry upsert: any metrics embedded in the event become the
	// device's latest snapshot, and lastSeen advances to arrival time.
	patch := DevicePatch{
		Name:    event.DeviceName,
		Metrics: event.Metrics,
	}
	if event.Type == models.EventModelLoaded {
		patch.CurrentModel = event.Metadata["model"]
	}
	device, created := p.registry.Upsert(event.DeviceID, patch, now)
	if created {
		// The triggering event carries a first_seen annotation so
		// downstream consumers can tell a brand-new device apart.
		meta := make(map[string]string, len(event.Metadata)+1)
		for k, v := range event.Metadata {
			meta[k] = v
		}
		meta["first_seen"] = device.FirstSeen.UTC().Format(time.RFC3339)
		event.Metadata = meta
		p.logger.Info("auto-registered device on first event",
			zap.String("device_id", device.ID),
		)
	}
	if event.DeviceName == "" {
		event.DeviceName = device.Name
	}

	evicted := p.history.Append(event)
	p.agg.Record(event, evicted)

	// Archive failures are transient I/O, not validation: the event is
	// already ingested, so log and carry on.
	if p.archive != nil {
		if err := p.archive.Insert(ctx, event); err != nil {
			p.logger.Warn("failed to archive event",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}

	eventsIngestedTotal.WithLabelValues(string(event.Type), string(event.Severity)).Inc()

	if p.bus != nil {
		// Synchronous publish inside the critical section: subscribers
		// observe ingestion order. Handlers must stay non-blocking;
		// slow consumers (webhook delivery) hand off to their own queue.
		_ = p.bus.Publish(ctx, plugin.Event{
			Topic:     TopicEventIngested,
			Source:    "telemetry",
			Timestamp: now,
			Payload:   event,
		})
		if event.Type == models.EventModelLoaded {
			_ = p.bus.Publish(ctx, plugin.Event{
				Topic:     TopicModelLoaded,
				Source:    "telemetry",
				Timestamp: now,
				Payload:   event,
			})
		}
		if created {
			p.bus.PublishAsync(ctx, plugin.Event{
				Topic:     TopicDeviceOnline,
				Source:    "telemetry",
				Timestamp: now,
				Payload:   device,
			})
		}
	}

	return event, nil
}

// validate enforces the closed enumerations and required fields.
func (p *Pipeline) validate(raw models.DetectionEvent) *ValidationError {
	if raw.DeviceID == "" {
		return &ValidationError{Field: "device_id", Detail: "must not be empty"}
	}
	if !raw.Type.Valid() {
		return &ValidationError{Field: "type", Detail: fmt.Sprintf("unknown event type %q", string(raw.Type))}
	}
	if !raw.Severity.Valid() {
		return &ValidationError{Field: "severity", Detail: fmt.Sprintf("unknown severity %q", string(raw.Severity))}
	}
	for _, b := range raw.Boxes {
		if b.Confidence < 0 || b.Confidence > 1 {
			return &ValidationError{Field: "boxes", Detail: "confidence must be within [0,1]"}
		}
	}
	return nil
}

// normalize fills defaults: event id, ingestion timestamp (client clock
// skew never blocks ingestion).
func (p *Pipeline) normalize(raw models.DetectionEvent, now time.Time) models.DetectionEvent {
	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = now
	}
	return raw
}
