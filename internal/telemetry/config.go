package telemetry

import "time"

// Config holds configuration for the telemetry module.
type Config struct {
	// AutoRegister controls whether events from unknown devices create a
	// registry entry on first contact. When false such events are rejected.
	AutoRegister bool `mapstructure:"auto_register"`

	// DegradedAfter is the soft liveness threshold: an online device that
	// has been silent this long is reported as degraded.
	DegradedAfter time.Duration `mapstructure:"degraded_after"`

	// StaleAfter is the hard liveness threshold: a device silent this long
	// is reported as offline.
	StaleAfter time.Duration `mapstructure:"stale_after"`

	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	// HistoryCapacity bounds the in-memory event buffer; oldest entries
	// are evicted first.
	HistoryCapacity int `mapstructure:"history_capacity"`

	// RetentionPeriod bounds the SQLite event archive.
	RetentionPeriod     time.Duration `mapstructure:"retention_period"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig returns the default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		AutoRegister:        true,
		DegradedAfter:       30 * time.Second,
		StaleAfter:          60 * time.Second,
		SweepInterval:       10 * time.Second,
		ReconcileInterval:   1 * time.Minute,
		HistoryCapacity:     500,
		RetentionPeriod:     30 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
	}
}
