package modelmgr

import (
	"database/sql"

	"github.com/HerbHall/edgewatch/pkg/plugin"
)

// migrations returns the modelmgr schema migrations in order.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create model_records table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE model_records (
						device_id       TEXT     NOT NULL,
						name            TEXT     NOT NULL,
						loads           INTEGER  NOT NULL DEFAULT 1,
						first_loaded_at DATETIME NOT NULL,
						last_loaded_at  DATETIME NOT NULL,
						PRIMARY KEY (device_id, name)
					)
				`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_model_records_name ON model_records(name)`)
				return err
			},
		},
	}
}
