package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/edgewatch.db")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.access_token_ttl", "15m")

	// Plugin defaults
	v.SetDefault("plugins.telemetry.enabled", true)
	v.SetDefault("plugins.telemetry.auto_register", true)
	v.SetDefault("plugins.telemetry.stale_after", "60s")
	v.SetDefault("plugins.telemetry.sweep_interval", "10s")
	v.SetDefault("plugins.telemetry.reconcile_interval", "1m")
	v.SetDefault("plugins.telemetry.history_capacity", 500)
	v.SetDefault("plugins.telemetry.retention_period", "720h")
	v.SetDefault("plugins.telemetry.maintenance_interval", "1h")
	v.SetDefault("plugins.ws.enabled", true)
	v.SetDefault("plugins.ws.queue_capacity", 256)
	v.SetDefault("plugins.ws.ping_interval", "30s")
	v.SetDefault("plugins.ws.pong_timeout", "10s")
	v.SetDefault("plugins.command.enabled", true)
	v.SetDefault("plugins.command.queue_capacity", 32)
	v.SetDefault("plugins.modelmgr.enabled", true)
	v.SetDefault("plugins.mqtt.enabled", false)
	v.SetDefault("plugins.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("plugins.mqtt.client_id", "edgewatch-server")
	v.SetDefault("plugins.mqtt.event_topic", "edge/+/events")
	v.SetDefault("plugins.mqtt.command_topic_prefix", "edge")
	v.SetDefault("plugins.mqtt.qos", 1)
	v.SetDefault("plugins.webhook.enabled", true)
	v.SetDefault("plugins.webhook.url", "")
	v.SetDefault("plugins.webhook.timeout", "10s")
	v.SetDefault("plugins.webhook.min_severity", "critical")
	v.SetDefault("plugins.webhook.queue_capacity", 64)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("edgewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/edgewatch")
	}

	// Environment variable support: EW_SERVER_PORT=9090
	v.SetEnvPrefix("EW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
