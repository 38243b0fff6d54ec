package command

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/command", Handler: m.handleQueueCommand},
		{Method: "GET", Path: "/pending/{device_id}", Handler: m.handleDrainPending},
	}
}

// QueueResponse is the response for POST /command.
type QueueResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// handleQueueCommand accepts a control command for a device.
func (m *Module) handleQueueCommand(w http.ResponseWriter, r *http.Request) {
	var cmd models.ControlCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	queued, err := m.Queue(r.Context(), cmd)
	if err != nil {
		var verr *telemetry.ValidationError
		var uerr *UnknownDeviceError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.As(err, &uerr):
			writeError(w, http.StatusNotFound, uerr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to queue command")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, QueueResponse{OK: true, ID: queued.ID})
}

// PendingResponse is the response for GET /pending/{device_id}.
type PendingResponse struct {
	Commands []models.ControlCommand `json:"commands"`
	Dropped  uint64                  `json:"dropped"`
}

// handleDrainPending pops and returns every pending command for a
// device. This is the polling delivery channel for devices without an
// MQTT path.
func (m *Module) handleDrainPending(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	commands := m.dispatcher.Drain(deviceID)
	if commands == nil {
		commands = []models.ControlCommand{}
	}
	writeJSON(w, http.StatusOK, PendingResponse{
		Commands: commands,
		Dropped:  m.dispatcher.Dropped(deviceID),
	})
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://edgewatch.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
