package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HerbHall/edgewatch/pkg/models"
)

// EventStore persists ingested events to the shared SQLite database so
// queries can reach further back than the in-memory history buffer.
// Raw frame payloads are not archived; they are fan-out-only.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates an event archive backed by db.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Insert archives a single ingested event.
func (s *EventStore) Insert(ctx context.Context, e models.DetectionEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var metrics, boxes []byte
	if e.Metrics != nil {
		if metrics, err = json.Marshal(e.Metrics); err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
	}
	if len(e.Boxes) > 0 {
		if boxes, err = json.Marshal(e.Boxes); err != nil {
			return fmt.Errorf("marshal boxes: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO telemetry_events (id, device_id, device_name, type, severity, description, metadata, metrics, boxes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, e.DeviceName, string(e.Type), string(e.Severity),
		e.Description, string(metadata), nullable(metrics), nullable(boxes), e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// EventsSince returns archived events ingested at or after since, oldest
// first.
func (s *EventStore) EventsSince(ctx context.Context, since time.Time) ([]models.DetectionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, device_name, type, severity, description, metadata, metrics, boxes, timestamp
		FROM telemetry_events
		WHERE ingested_at >= ?
		ORDER BY ingested_at ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events since %s: %w", since, err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		var (
			e              models.DetectionEvent
			typ, sev       string
			metadata       string
			metrics, boxes sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.DeviceName, &typ, &sev,
			&e.Description, &metadata, &metrics, &boxes, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = models.EventType(typ)
		e.Severity = models.Severity(sev)
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", e.ID, err)
		}
		if metrics.Valid {
			e.Metrics = &models.DeviceMetrics{}
			if err := json.Unmarshal([]byte(metrics.String), e.Metrics); err != nil {
				return nil, fmt.Errorf("unmarshal metrics for %s: %w", e.ID, err)
			}
		}
		if boxes.Valid {
			if err := json.Unmarshal([]byte(boxes.String), &e.Boxes); err != nil {
				return nil, fmt.Errorf("unmarshal boxes for %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes archived events ingested before cutoff and
// returns the number deleted.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM telemetry_events WHERE ingested_at < ?", cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return res.RowsAffected()
}

// nullable converts an empty JSON blob to a SQL NULL.
func nullable(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
