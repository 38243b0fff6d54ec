package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{device_id}", Handler: m.handleGetDevice},
		{Method: "GET", Path: "/events", Handler: m.handleListEvents},
		{Method: "GET", Path: "/events/history", Handler: m.handleEventHistory},
		{Method: "POST", Path: "/events", Handler: m.handleIngest},
	}
}

// handleStatus returns the derived fleet summary.
func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	status := Status(m.registry.List(now), m.agg.Alerts(), m.startedAt, now)
	writeJSON(w, http.StatusOK, status)
}

// handleListDevices returns the current registry snapshot in insertion order.
func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := m.registry.List(time.Now())
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns a single device record.
func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	device, ok := m.registry.Get(deviceID, time.Now())
	if !ok {
		writeDomainError(w, &NotFoundError{Resource: "device", ID: deviceID})
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleListEvents returns recent events from the in-memory buffer,
// most-recent-first, after applying the optional filters.
func (m *Module) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := EventFilter{
		Limit:    parseLimit(r, 100),
		DeviceID: q.Get("device_id"),
		Severity: models.Severity(q.Get("severity")),
		Type:     models.EventType(q.Get("type")),
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "unknown severity "+strconv.Quote(string(filter.Severity)))
		return
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown event type "+strconv.Quote(string(filter.Type)))
		return
	}

	events := m.history.Recent(filter)
	if events == nil {
		events = []models.DetectionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// EventHistoryResponse is the response for GET /events/history.
type EventHistoryResponse struct {
	Count  int                     `json:"count"`
	Hours  int                     `json:"hours"`
	Events []models.DetectionEvent `json:"events"`
}

// handleEventHistory returns archived events from the last N hours.
func (m *Module) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if s := r.URL.Query().Get("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 24*30 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer up to 720")
			return
		}
		hours = n
	}

	if m.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "event archive is not configured")
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	events, err := m.archive.EventsSince(r.Context(), since)
	if err != nil {
		m.logger.Error("event history query failed", zap.Error(err))
		writeDomainError(w, &TransientError{Op: "query event archive", Err: err})
		return
	}
	if events == nil {
		events = []models.DetectionEvent{}
	}
	writeJSON(w, http.StatusOK, EventHistoryResponse{
		Count:  len(events),
		Hours:  hours,
		Events: events,
	})
}

// IngestResponse is the response for POST /events.
type IngestResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// handleIngest accepts a single raw device event.
func (m *Module) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw models.DetectionEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event, err := m.pipeline.Ingest(r.Context(), raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{OK: true, ID: event.ID})
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDomainError maps the package error taxonomy onto problem
// responses: validation 400, lookup miss 404, transient I/O 502.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var nferr *NotFoundError
	var terr *TransientError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &nferr):
		writeError(w, http.StatusNotFound, nferr.Error())
	case errors.As(err, &terr):
		writeError(w, http.StatusBadGateway, terr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
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

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
