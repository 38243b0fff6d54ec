package models

import "time"

// CommandType discriminates control commands relayed to devices.
type CommandType string

const (
	CommandSetFPS                CommandType = "SET_FPS"
	CommandChangeModel           CommandType = "CHANGE_MODEL"
	CommandEnableDebug           CommandType = "ENABLE_DEBUG"
	CommandSetDetectionThreshold CommandType = "SET_DETECTION_THRESHOLD"
	CommandReloadModel           CommandType = "RELOAD_MODEL"
	CommandSwitchModelVariant    CommandType = "SWITCH_MODEL_VARIANT"
	CommandShutdown              CommandType = "SHUTDOWN"
)

// Valid reports whether t is one of the closed set of command types.
func (t CommandType) Valid() bool {
	switch t {
	case CommandSetFPS, CommandChangeModel, CommandEnableDebug,
		CommandSetDetectionThreshold, CommandReloadModel,
		CommandSwitchModelVariant, CommandShutdown:
		return true
	}
	return false
}

// ControlCommand is a control instruction queued for delivery to a
// device. EdgeWatch validates and queues commands; execution is the
// device's responsibility.
type ControlCommand struct {
	ID         string            `json:"id" example:"a3c1f8d2-04b4-4e0e-8f2b-7f3d1c9a5e60"`
	DeviceID   string            `json:"device_id" example:"edge-001"`
	Type       CommandType       `json:"type" example:"SET_FPS"`
	Parameters map[string]string `json:"parameters,omitempty"`
	QueuedAt   time.Time         `json:"queued_at"`
}
