package telemetry

import (
	"database/sql"

	"github.com/HerbHall/edgewatch/pkg/plugin"
)

// migrations returns the telemetry module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create event archive",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS telemetry_events (
						id          TEXT PRIMARY KEY,
						device_id   TEXT NOT NULL,
						device_name TEXT NOT NULL DEFAULT '',
						type        TEXT NOT NULL,
						severity    TEXT NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						metadata    TEXT NOT NULL DEFAULT '{}',
						metrics     TEXT,
						boxes       TEXT,
						timestamp   DATETIME NOT NULL,
						ingested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_telemetry_events_ingested ON telemetry_events(ingested_at)`,
					`CREATE INDEX IF NOT EXISTS idx_telemetry_events_device ON telemetry_events(device_id, ingested_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
