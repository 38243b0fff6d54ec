package ws

import (
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageEvent        MessageType = "event"
	MessageDeviceStatus MessageType = "device.status"
)

// Message is the envelope for all WebSocket messages. Dropped carries
// the number of messages this subscriber lost to queue overflow since
// its previous delivery.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Dropped   uint64      `json:"dropped,omitempty"`
	Data      any         `json:"data"`
}

// DeviceStatusData is the payload for device.status messages.
type DeviceStatusData struct {
	Device models.Device       `json:"device"`
	Status models.DeviceStatus `json:"status"`
}
