package models

// EdgeSummary aggregates fleet-wide device metrics.
type EdgeSummary struct {
	ConnectedDevices int     `json:"connected_devices"`
	TotalFPS         float64 `json:"total_fps"`
	AvgNPUUsage      float64 `json:"avg_npu_usage"`
	AvgTemperature   float64 `json:"avg_temperature"`
}

// AlertCounts tallies events by severity over the retained history.
type AlertCounts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// SystemStatus is the derived fleet summary served by GET /status.
// It is a view computed from the device registry and event history,
// never an independently stored entity.
type SystemStatus struct {
	Edge   EdgeSummary `json:"edge"`
	Alerts AlertCounts `json:"alerts"`
	Uptime float64     `json:"uptime"` // service uptime in seconds
}
