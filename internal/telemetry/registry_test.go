package telemetry

import (
	"testing"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
)

func testRegistry() *Registry {
	return NewRegistry(30*time.Second, 60*time.Second)
}

func TestUpsert_CreatesAndUpdates(t *testing.T) {
	reg := testRegistry()
	t0 := time.Now()

	d, created := reg.Upsert("edge-001", DevicePatch{Name: "Dock Cam"}, t0)
	if !created {
		t.Error("expected created=true on first upsert")
	}
	if d.Status != models.DeviceStatusOnline {
		t.Errorf("status = %q, want online", d.Status)
	}
	if !d.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen = %v, want %v", d.FirstSeen, t0)
	}

	t1 := t0.Add(5 * time.Second)
	d, created = reg.Upsert("edge-001", DevicePatch{
		Metrics: &models.DeviceMetrics{FPS: 30, NPUUsage: 55},
	}, t1)
	if created {
		t.Error("expected created=false on second upsert")
	}
	if d.Name != "Dock Cam" {
		t.Errorf("Name = %q, want %q (patch without name must not clear it)", d.Name, "Dock Cam")
	}
	if d.Metrics.FPS != 30 {
		t.Errorf("FPS = %v, want 30", d.Metrics.FPS)
	}
	if !d.FirstSeen.Equal(t0) {
		t.Error("FirstSeen must not change on update")
	}
}

// TestUpsert_LastSeenTracksArrival verifies that lastSeen always equals
// the arrival time of the device's most recent event, regardless of any
// embedded event timestamps.
func TestUpsert_LastSeenTracksArrival(t *testing.T) {
	reg := testRegistry()
	t0 := time.Now()

	arrivals := []time.Time{t0, t0.Add(time.Second), t0.Add(3 * time.Second)}
	for _, at := range arrivals {
		reg.Upsert("edge-001", DevicePatch{}, at)
	}

	d, ok := reg.Get("edge-001", t0.Add(4*time.Second))
	if !ok {
		t.Fatal("device not found")
	}
	if !d.LastSeen.Equal(arrivals[2]) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, arrivals[2])
	}
}

func TestGet_Unknown(t *testing.T) {
	reg := testRegistry()
	if _, ok := reg.Get("ghost", time.Now()); ok {
		t.Error("Get of unknown device returned ok=true")
	}
}

func TestList_InsertionOrderStable(t *testing.T) {
	reg := testRegistry()
	now := time.Now()

	for _, id := range []string{"edge-003", "edge-001", "edge-002"} {
		reg.Upsert(id, DevicePatch{}, now)
	}
	// Updating an existing device must not move it.
	reg.Upsert("edge-003", DevicePatch{}, now.Add(time.Second))

	want := []string{"edge-003", "edge-001", "edge-002"}
	for call := 0; call < 2; call++ {
		devices := reg.List(now.Add(2 * time.Second))
		if len(devices) != len(want) {
			t.Fatalf("List returned %d devices, want %d", len(devices), len(want))
		}
		for i, id := range want {
			if devices[i].ID != id {
				t.Errorf("call %d: devices[%d].ID = %q, want %q", call, i, devices[i].ID, id)
			}
		}
	}
}

// TestLazyLiveness verifies that a silent device reads as degraded, then
// offline, without any sweep having run.
func TestLazyLiveness(t *testing.T) {
	reg := testRegistry()
	t0 := time.Now()
	reg.Upsert("edge-002", DevicePatch{}, t0)

	tests := []struct {
		elapsed time.Duration
		want    models.DeviceStatus
	}{
		{10 * time.Second, models.DeviceStatusOnline},
		{30 * time.Second, models.DeviceStatusDegraded},
		{59 * time.Second, models.DeviceStatusDegraded},
		{60 * time.Second, models.DeviceStatusOffline},
		{10 * time.Minute, models.DeviceStatusOffline},
	}
	for _, tt := range tests {
		d, _ := reg.Get("edge-002", t0.Add(tt.elapsed))
		if d.Status != tt.want {
			t.Errorf("after %v: status = %q, want %q", tt.elapsed, d.Status, tt.want)
		}
	}
}

func TestSweepStale_Transitions(t *testing.T) {
	reg := testRegistry()
	t0 := time.Now()
	reg.Upsert("fresh", DevicePatch{}, t0.Add(50*time.Second))
	reg.Upsert("quiet", DevicePatch{}, t0.Add(25*time.Second))
	reg.Upsert("gone", DevicePatch{}, t0)

	transitions := reg.SweepStale(t0.Add(61 * time.Second))

	byID := make(map[string]Transition)
	for _, tr := range transitions {
		byID[tr.Device.ID] = tr
	}
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2: %+v", len(transitions), transitions)
	}
	if tr := byID["quiet"]; tr.To != models.DeviceStatusDegraded {
		t.Errorf("quiet transitioned to %q, want degraded", tr.To)
	}
	if tr := byID["gone"]; tr.To != models.DeviceStatusOffline {
		t.Errorf("gone transitioned to %q, want offline", tr.To)
	}

	// Sweep persists: the stored status changed, so a second sweep at the
	// same instant reports nothing.
	if again := reg.SweepStale(t0.Add(61 * time.Second)); len(again) != 0 {
		t.Errorf("second sweep produced %d transitions, want 0", len(again))
	}
}

// TestSweepThenUpsert verifies a device returns to online when it speaks
// again after being swept offline.
func TestSweepThenUpsert(t *testing.T) {
	reg := testRegistry()
	t0 := time.Now()
	reg.Upsert("edge-001", DevicePatch{}, t0)
	reg.SweepStale(t0.Add(2 * time.Minute))

	d, _ := reg.Upsert("edge-001", DevicePatch{}, t0.Add(3*time.Minute))
	if d.Status != models.DeviceStatusOnline {
		t.Errorf("status after re-contact = %q, want online", d.Status)
	}
}

// TestList_ReturnsCopies verifies callers cannot mutate registry state
// through returned values.
func TestList_ReturnsCopies(t *testing.T) {
	reg := testRegistry()
	now := time.Now()
	reg.Upsert("edge-001", DevicePatch{Name: "Cam"}, now)

	devices := reg.List(now)
	devices[0].Name = "tampered"

	d, _ := reg.Get("edge-001", now)
	if d.Name != "Cam" {
		t.Errorf("registry state mutated through List copy: Name = %q", d.Name)
	}
}
