package modelmgr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/edgewatch/internal/store"
)

func testModelStore(t *testing.T) *ModelStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "modelmgr", migrations()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewModelStore(s.DB())
}

func TestModelStore_RecordLoadUpserts(t *testing.T) {
	ms := testModelStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	if err := ms.RecordLoad(ctx, "edge-001", "yolov8n-int8", t0); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	if err := ms.RecordLoad(ctx, "edge-001", "yolov8n-int8", t0.Add(time.Hour)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	records, err := ms.List(ctx, "edge-001")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (upsert)", len(records))
	}
	rec := records[0]
	if rec.Loads != 2 {
		t.Errorf("loads = %d, want 2", rec.Loads)
	}
	if !rec.FirstLoadedAt.Equal(t0) {
		t.Errorf("first_loaded_at = %v, want %v", rec.FirstLoadedAt, t0)
	}
	if !rec.LastLoadedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("last_loaded_at = %v, want %v", rec.LastLoadedAt, t0.Add(time.Hour))
	}
}

func TestModelStore_ListFiltersAndOrders(t *testing.T) {
	ms := testModelStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	if err := ms.RecordLoad(ctx, "edge-001", "yolov8n-int8", t0); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	if err := ms.RecordLoad(ctx, "edge-002", "yolov8s-fp16", t0.Add(time.Minute)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	if err := ms.RecordLoad(ctx, "edge-001", "mobilenet-ssd", t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	all, err := ms.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}
	if all[0].Name != "mobilenet-ssd" {
		t.Errorf("first record = %q, want mobilenet-ssd (most recent)", all[0].Name)
	}

	byDevice, err := ms.List(ctx, "edge-002")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byDevice) != 1 || byDevice[0].Name != "yolov8s-fp16" {
		t.Errorf("records for edge-002 = %+v", byDevice)
	}
}

func TestModelStore_Known(t *testing.T) {
	ms := testModelStore(t)
	ctx := context.Background()

	if err := ms.RecordLoad(ctx, "edge-001", "yolov8n-int8", time.Now()); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	known, err := ms.Known(ctx, "yolov8n-int8")
	if err != nil {
		t.Fatalf("Known: %v", err)
	}
	if !known {
		t.Error("Known = false for recorded model")
	}

	known, err = ms.Known(ctx, "ghost-model")
	if err != nil {
		t.Fatalf("Known: %v", err)
	}
	if known {
		t.Error("Known = true for unrecorded model")
	}
}
