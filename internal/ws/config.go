package ws

import "time"

// Config holds WebSocket fan-out settings.
type Config struct {
	// QueueCapacity bounds each subscriber's undelivered message queue.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// PingInterval is how often idle connections are pinged.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// PongTimeout is how long to wait for a pong before evicting.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
}

// DefaultConfig returns the default WebSocket settings.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 256,
		PingInterval:  30 * time.Second,
		PongTimeout:   10 * time.Second,
	}
}
