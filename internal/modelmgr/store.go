package modelmgr

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ModelRecord tracks one model observed running on one device, built up
// from MODEL_LOADED events.
type ModelRecord struct {
	DeviceID      string    `json:"device_id"`
	Name          string    `json:"name"`
	Loads         int       `json:"loads"`
	FirstLoadedAt time.Time `json:"first_loaded_at"`
	LastLoadedAt  time.Time `json:"last_loaded_at"`
}

// ModelStore persists model load records in the shared SQLite database.
type ModelStore struct {
	db *sql.DB
}

// NewModelStore creates a model record store backed by db.
func NewModelStore(db *sql.DB) *ModelStore {
	return &ModelStore{db: db}
}

// RecordLoad upserts a load observation for (deviceID, name).
func (s *ModelStore) RecordLoad(ctx context.Context, deviceID, name string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_records (device_id, name, loads, first_loaded_at, last_loaded_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (device_id, name)
		DO UPDATE SET loads = loads + 1, last_loaded_at = excluded.last_loaded_at`,
		deviceID, name, at.UTC(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record model load %s/%s: %w", deviceID, name, err)
	}
	return nil
}

// List returns model records, optionally filtered by device, most
// recently loaded first.
func (s *ModelStore) List(ctx context.Context, deviceID string) ([]ModelRecord, error) {
	query := `
		SELECT device_id, name, loads, first_loaded_at, last_loaded_at
		FROM model_records`
	args := []any{}
	if deviceID != "" {
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY last_loaded_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list model records: %w", err)
	}
	defer rows.Close()

	var records []ModelRecord
	for rows.Next() {
		var rec ModelRecord
		if err := rows.Scan(&rec.DeviceID, &rec.Name, &rec.Loads, &rec.FirstLoadedAt, &rec.LastLoadedAt); err != nil {
			return nil, fmt.Errorf("scan model record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Known reports whether any device has ever loaded the named model.
func (s *ModelStore) Known(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM model_records WHERE name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check model %s: %w", name, err)
	}
	return count > 0, nil
}
