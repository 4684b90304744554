package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
)

// EventRepository is an append-only Postgres store for device state events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository constructs a repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append writes one state event. Events are immutable once written.
func (r *EventRepository) Append(ctx context.Context, event eventlog.Event) error {
	if r == nil || r.db == nil {
		return errors.New("event repo: nil db")
	}
	if event.DeviceID == "" {
		return errors.New("event repo: empty device id")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO device_events (
	id, device_id, state, created_at
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO NOTHING`, event.ID, event.DeviceID, string(event.State), event.CreatedAt.UTC())
	return err
}

// QueryRange returns the device's events inside the window ordered by
// creation time. Weekend rows are filtered in SQL when the window asks
// for working days only.
func (r *EventRepository) QueryRange(ctx context.Context, deviceID string, window eventlog.Window) ([]eventlog.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("event repo: empty device id")
	}

	query := `
SELECT id, device_id, state, created_at
FROM device_events
WHERE device_id = $1 AND created_at >= $2 AND created_at < $3`
	if window.ExcludeWeekends {
		query += `
	AND EXTRACT(ISODOW FROM created_at) < 6`
	}
	query += `
ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, deviceID, window.From.UTC(), window.To.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []eventlog.Event
	for rows.Next() {
		var event eventlog.Event
		var state string
		if err := rows.Scan(&event.ID, &event.DeviceID, &state, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.State = directory.DeviceState(state)
		event.CreatedAt = event.CreatedAt.UTC()
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
