// Package models defines the shared wire types exchanged between
// EdgeWatch modules and API consumers.
package models

import "time"

// DeviceStatus represents the connectivity state of an edge device.
type DeviceStatus string

const (
	DeviceStatusOnline   DeviceStatus = "online"
	DeviceStatusOffline  DeviceStatus = "offline"
	DeviceStatusDegraded DeviceStatus = "degraded"
)

// Valid reports whether s is one of the closed set of device states.
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusDegraded:
		return true
	}
	return false
}

// DeviceMetrics is the latest resource snapshot reported by a device.
type DeviceMetrics struct {
	CPUUsage     float64 `json:"cpu_usage"`      // percent, 0-100
	NPUUsage     float64 `json:"npu_usage"`      // percent, 0-100
	MemoryUsedMB float64 `json:"memory_used_mb"` // resident memory in MB
	TemperatureC float64 `json:"temperature_c"`  // SoC temperature
	FPS          float64 `json:"fps"`            // inference frames per second
}

// Device represents an edge unit producing detection and health telemetry.
// Owned exclusively by the telemetry device registry; API consumers
// always receive copies.
type Device struct {
	ID              string        `json:"id" example:"edge-001"`
	Name            string        `json:"name" example:"Loading Dock Cam"`
	Status          DeviceStatus  `json:"status" example:"online"`
	FirmwareVersion string        `json:"firmware_version,omitempty" example:"2.4.1"`
	Capabilities    []string      `json:"capabilities,omitempty"`
	Metrics         DeviceMetrics `json:"metrics"`
	LastSeen        time.Time     `json:"last_seen" example:"2026-08-28T10:30:00Z"`
	FirstSeen       time.Time     `json:"first_seen" example:"2026-08-20T08:00:00Z"`
	CurrentModel    string        `json:"current_model,omitempty" example:"yolov8n-int8"`
}
