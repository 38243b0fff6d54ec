package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (b *recordingBus) Publish(_ context.Context, e plugin.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) PublishAsync(ctx context.Context, e plugin.Event) { _ = b.Publish(ctx, e) }

func (b *recordingBus) Subscribe(_ string, _ plugin.EventHandler) (unsubscribe func()) {
	return func() {}
}

func (b *recordingBus) SubscribeAll(_ plugin.EventHandler) (unsubscribe func()) {
	return func() {}
}

func (b *recordingBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}

func testCommandModule(t *testing.T) (*Module, *recordingBus) {
	t.Helper()
	registry := telemetry.NewRegistry(30*time.Second, 60*time.Second)
	registry.Upsert("edge-001", telemetry.DevicePatch{Name: "Dock Cam"}, time.Now())

	bus := &recordingBus{}
	m := &Module{
		logger:     zap.NewNop(),
		cfg:        DefaultConfig(),
		dispatcher: NewDispatcher(4),
		registry:   registry,
		bus:        bus,
	}
	return m, bus
}

func TestQueue_AssignsIDAndPublishes(t *testing.T) {
	m, bus := testCommandModule(t)

	cmd, err := m.Queue(context.Background(), models.ControlCommand{
		DeviceID:   "edge-001",
		Type:       models.CommandSetFPS,
		Parameters: map[string]string{"fps": "15"},
	})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if cmd.ID == "" {
		t.Error("expected generated command ID")
	}
	if cmd.QueuedAt.IsZero() {
		t.Error("expected QueuedAt to be set")
	}
	if got := bus.count(TopicCommandQueued); got != 1 {
		t.Errorf("published %d command.queued events, want 1", got)
	}
	if got := m.dispatcher.Pending("edge-001"); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestQueue_Validation(t *testing.T) {
	m, bus := testCommandModule(t)

	tests := []struct {
		name string
		cmd  models.ControlCommand
	}{
		{"missing device id", models.ControlCommand{Type: models.CommandSetFPS}},
		{"unknown type", models.ControlCommand{DeviceID: "edge-001", Type: "EXPLODE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Queue(context.Background(), tt.cmd)
			var verr *telemetry.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *telemetry.ValidationError", err)
			}
		})
	}
	if got := bus.count(TopicCommandQueued); got != 0 {
		t.Errorf("published %d events for rejected commands, want 0", got)
	}
}

func TestQueue_UnknownDevice(t *testing.T) {
	m, _ := testCommandModule(t)

	_, err := m.Queue(context.Background(), models.ControlCommand{
		DeviceID: "ghost",
		Type:     models.CommandReloadModel,
	})
	var uerr *UnknownDeviceError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnknownDeviceError", err)
	}
}

func testCommandServer(t *testing.T, m *Module) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for _, route := range m.Routes() {
		mux.HandleFunc(route.Method+" "+route.Path, route.Handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleQueueCommand(t *testing.T) {
	m, _ := testCommandModule(t)
	srv := testCommandServer(t, m)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"accepted", `{"device_id":"edge-001","type":"SET_FPS","parameters":{"fps":"15"}}`, http.StatusAccepted},
		{"invalid json", `{"device_id":`, http.StatusBadRequest},
		{"unknown type", `{"device_id":"edge-001","type":"EXPLODE"}`, http.StatusBadRequest},
		{"unknown device", `{"device_id":"ghost","type":"SET_FPS"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/command", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST /command: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestHandleDrainPending(t *testing.T) {
	m, _ := testCommandModule(t)
	srv := testCommandServer(t, m)

	for i := 0; i < 2; i++ {
		if _, err := m.Queue(context.Background(), models.ControlCommand{
			DeviceID: "edge-001",
			Type:     models.CommandSetFPS,
		}); err != nil {
			t.Fatalf("Queue: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/pending/edge-001")
	if err != nil {
		t.Fatalf("GET /pending/edge-001: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out PendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Commands) != 2 {
		t.Errorf("got %d commands, want 2", len(out.Commands))
	}

	// Second drain returns an empty list, not null.
	resp2, err := http.Get(srv.URL + "/pending/edge-001")
	if err != nil {
		t.Fatalf("GET /pending/edge-001: %v", err)
	}
	defer resp2.Body.Close()
	if err := json.NewDecoder(resp2.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Commands == nil || len(out.Commands) != 0 {
		t.Errorf("second drain commands = %v, want empty slice", out.Commands)
	}
}
