package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/edgewatch/internal/store"
	"github.com/HerbHall/edgewatch/pkg/models"
)

func testArchive(t *testing.T) *EventStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "telemetry", migrations()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewEventStore(s.DB())
}

func archivedEvent(id string) models.DetectionEvent {
	return models.DetectionEvent{
		ID:          id,
		DeviceID:    "edge-001",
		DeviceName:  "Dock Cam",
		Type:        models.EventDetectionAlert,
		Severity:    models.SeverityCritical,
		Description: "person detected",
		Metadata:    map[string]string{"zone": "loading-dock"},
		Timestamp:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestEventStore_InsertAndQuery(t *testing.T) {
	archive := testArchive(t)
	ctx := context.Background()

	e := archivedEvent("evt-1")
	e.Metrics = &models.DeviceMetrics{CPUUsage: 40, NPUUsage: 70, FPS: 30, TemperatureC: 52}
	e.Boxes = []models.BoundingBox{{ClassName: "person", Confidence: 0.91, XMin: 0.1, YMin: 0.2, XMax: 0.4, YMax: 0.8}}
	if err := archive.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	events, err := archive.EventsSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.ID != "evt-1" || got.DeviceID != "edge-001" {
		t.Errorf("event = %+v", got)
	}
	if got.Type != models.EventDetectionAlert || got.Severity != models.SeverityCritical {
		t.Errorf("type/severity = %q/%q", got.Type, got.Severity)
	}
	if got.Metadata["zone"] != "loading-dock" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.Metrics == nil || got.Metrics.NPUUsage != 70 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if len(got.Boxes) != 1 || got.Boxes[0].ClassName != "person" {
		t.Errorf("boxes = %+v", got.Boxes)
	}
}

func TestEventStore_NullableFieldsRoundTrip(t *testing.T) {
	archive := testArchive(t)
	ctx := context.Background()

	// No metrics, no boxes: columns stored as NULL.
	if err := archive.Insert(ctx, archivedEvent("evt-bare")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	events, err := archive.EventsSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Metrics != nil {
		t.Errorf("metrics = %+v, want nil", events[0].Metrics)
	}
	if events[0].Boxes != nil {
		t.Errorf("boxes = %+v, want nil", events[0].Boxes)
	}
}

func TestEventStore_EventsSinceOrdering(t *testing.T) {
	archive := testArchive(t)
	ctx := context.Background()

	for _, id := range []string{"evt-a", "evt-b", "evt-c"} {
		if err := archive.Insert(ctx, archivedEvent(id)); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	events, err := archive.EventsSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"evt-a", "evt-b", "evt-c"} {
		if events[i].ID != want {
			t.Errorf("events[%d].ID = %q, want %q (oldest first)", i, events[i].ID, want)
		}
	}

	// A future cutoff excludes everything.
	events, err = archive.EventsSince(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events for future cutoff, want 0", len(events))
	}
}

func TestEventStore_DeleteOlderThan(t *testing.T) {
	archive := testArchive(t)
	ctx := context.Background()

	for _, id := range []string{"evt-1", "evt-2"} {
		if err := archive.Insert(ctx, archivedEvent(id)); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	// Cutoff in the past touches nothing.
	deleted, err := archive.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}

	// Cutoff in the future prunes everything.
	deleted, err = archive.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	events, err := archive.EventsSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events after prune, want 0", len(events))
	}
}
