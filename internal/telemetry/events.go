package telemetry

// Event topics published by the telemetry module.
const (
	TopicEventIngested  = "telemetry.event.ingested"
	TopicDeviceOnline   = "telemetry.device.online"
	TopicDeviceDegraded = "telemetry.device.degraded"
	TopicDeviceOffline  = "telemetry.device.offline"
	TopicModelLoaded    = "telemetry.model.loaded"
)
