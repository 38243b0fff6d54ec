package modelmgr

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/HerbHall/edgewatch/internal/command"
	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/models", Handler: m.handleListModels},
		{Method: "POST", Path: "/models/{id}/switch", Handler: m.handleSwitchModel},
		{Method: "POST", Path: "/models/reload", Handler: m.handleReloadModels},
	}
}

// handleListModels returns known model records, optionally filtered by
// device.
func (m *Module) handleListModels(w http.ResponseWriter, r *http.Request) {
	records, err := m.store.List(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		m.logger.Error("failed to list model records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	if records == nil {
		records = []ModelRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// SwitchRequest is the body for POST /models/{id}/switch.
type SwitchRequest struct {
	DeviceID string `json:"device_id"`
}

// RelayResponse reports the control commands issued by a relay
// operation.
type RelayResponse struct {
	OK       bool     `json:"ok"`
	Commands []string `json:"commands"`
}

// handleSwitchModel relays a model switch to the target device as a
// SWITCH_MODEL_VARIANT command. The model must have been observed
// loading somewhere in the fleet; the device reports back with a
// MODEL_LOADED event once the switch lands.
func (m *Module) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("id")
	if modelID == "" {
		writeError(w, http.StatusBadRequest, "model id is required")
		return
	}

	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	known, err := m.store.Known(r.Context(), modelID)
	if err != nil {
		m.logger.Error("failed to check model record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to check model")
		return
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown model "+modelID)
		return
	}

	cmd, err := m.commands.Queue(r.Context(), models.ControlCommand{
		DeviceID:   req.DeviceID,
		Type:       models.CommandSwitchModelVariant,
		Parameters: map[string]string{"model": modelID},
	})
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RelayResponse{OK: true, Commands: []string{cmd.ID}})
}

// ReloadRequest is the body for POST /models/reload. An empty device_id
// reloads the whole fleet.
type ReloadRequest struct {
	DeviceID string `json:"device_id"`
}

// handleReloadModels relays RELOAD_MODEL to one device or to every
// known device.
func (m *Module) handleReloadModels(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	targets := []string{req.DeviceID}
	if req.DeviceID == "" {
		targets = targets[:0]
		for _, d := range m.devices.List(time.Now()) {
			targets = append(targets, d.ID)
		}
	}

	ids := make([]string, 0, len(targets))
	for _, deviceID := range targets {
		cmd, err := m.commands.Queue(r.Context(), models.ControlCommand{
			DeviceID: deviceID,
			Type:     models.CommandReloadModel,
		})
		if err != nil {
			writeRelayError(w, err)
			return
		}
		ids = append(ids, cmd.ID)
	}
	writeJSON(w, http.StatusAccepted, RelayResponse{OK: true, Commands: ids})
}

// writeRelayError maps command relay failures onto problem responses.
func writeRelayError(w http.ResponseWriter, err error) {
	var verr *telemetry.ValidationError
	var uerr *command.UnknownDeviceError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &uerr):
		writeError(w, http.StatusNotFound, uerr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to relay command")
	}
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
