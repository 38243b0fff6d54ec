package mqtt

import "time"

// Config holds MQTT bridge settings. An empty Broker disables the
// bridge entirely.
type Config struct {
	Broker             string        `mapstructure:"broker"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	ClientID           string        `mapstructure:"client_id"`
	EventTopic         string        `mapstructure:"event_topic"`
	CommandTopicPrefix string        `mapstructure:"command_topic_prefix"`
	QoS                byte          `mapstructure:"qos"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the default MQTT bridge settings.
func DefaultConfig() Config {
	return Config{
		ClientID:           "edgewatch-server",
		EventTopic:         "edge/+/events",
		CommandTopicPrefix: "edge",
		QoS:                1,
		Timeout:            10 * time.Second,
	}
}
