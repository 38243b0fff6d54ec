package models

import "time"

// EventType discriminates telemetry events ingested from devices.
type EventType string

const (
	EventDetectionAlert EventType = "DETECTION_ALERT"
	EventSystemError    EventType = "SYSTEM_ERROR"
	EventModelLoaded    EventType = "MODEL_LOADED"
	EventHealthUpdate   EventType = "HEALTH_UPDATE"
)

// Valid reports whether t is one of the closed set of event types.
func (t EventType) Valid() bool {
	switch t {
	case EventDetectionAlert, EventSystemError, EventModelLoaded, EventHealthUpdate:
		return true
	}
	return false
}

// Severity classifies the urgency of an event.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the closed set of severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// BoundingBox is a single detected object within a frame. Coordinates
// are normalized to [0,1] relative to frame dimensions.
type BoundingBox struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name" example:"person"`
	Confidence float64 `json:"confidence" example:"0.87"`
	XMin       float64 `json:"x_min"`
	YMin       float64 `json:"y_min"`
	XMax       float64 `json:"x_max"`
	YMax       float64 `json:"y_max"`
}

// DetectionEvent is a single immutable telemetry record ingested from a
// device. Once created by the ingestion pipeline it is never mutated;
// acknowledgement state is a per-viewer concern and lives outside the
// canonical stream.
type DetectionEvent struct {
	ID          string            `json:"id" example:"5f0c9b7e-3f7a-4a86-9d0e-2b1f6f6a9c11"`
	DeviceID    string            `json:"device_id" example:"edge-001"`
	DeviceName  string            `json:"device_name,omitempty" example:"Loading Dock Cam"`
	Type        EventType         `json:"type" example:"DETECTION_ALERT"`
	Severity    Severity          `json:"severity" example:"critical"`
	Description string            `json:"description" example:"person detected in restricted zone"`
	Timestamp   time.Time         `json:"timestamp" example:"2026-08-28T10:30:00Z"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Metrics     *DeviceMetrics    `json:"metrics,omitempty"`
	Boxes       []BoundingBox     `json:"boxes,omitempty"`
	FrameData   string            `json:"frame_data,omitempty"` // base64 JPEG, optional
}
