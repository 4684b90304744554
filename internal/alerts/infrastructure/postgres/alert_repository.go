package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	alerts "occupancy-cloud/internal/alerts/domain"
	"occupancy-cloud/internal/audit"
	"occupancy-cloud/internal/auth"
	directory "occupancy-cloud/internal/directory/domain"
)

const uniqueViolation = "23505"

// AlertRepository is a Postgres repository for device alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an alert. The alerts table carries a unique constraint on
// device_id; a second alert for the same device maps to ErrConflict.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	weekdays, recipients, err := encodeAlertLists(alert)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, device_id, trigger_state, trigger_duration_minutes, schedule_type,
	weekdays, enabled, recipients, condition_start_time, active,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10,
	$11, $12
)`, alert.ID, alert.DeviceID, string(alert.Trigger.State), alert.Trigger.DurationMinutes, string(alert.ScheduleType),
		weekdays, alert.Enabled, recipients, alert.ConditionStartTime, alert.Active,
		alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return alerts.ErrConflict
		}
		return err
	}
	logAlertAudit(ctx, r.db, "alert.create", alert)
	return nil
}

// GetByID loads an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if id == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, device_id, trigger_state, trigger_duration_minutes, schedule_type,
	weekdays, enabled, recipients, condition_start_time, active,
	created_at, updated_at
FROM alerts
WHERE id = $1
LIMIT 1`, id)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return alert, nil
}

// List returns one page of alerts with the unpaged total.
func (r *AlertRepository) List(ctx context.Context, page, limit int) ([]alerts.Alert, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("alert repo: nil db")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_id, trigger_state, trigger_duration_minutes, schedule_type,
	weekdays, enabled, recipients, condition_start_time, active,
	created_at, updated_at
FROM alerts
ORDER BY created_at ASC
LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := collectAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Update replaces the configurable alert fields. The debounce columns are
// written as given; callers preserve the stored values.
func (r *AlertRepository) Update(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	weekdays, recipients, err := encodeAlertLists(alert)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET trigger_state = $1,
	trigger_duration_minutes = $2,
	schedule_type = $3,
	weekdays = $4,
	enabled = $5,
	recipients = $6,
	condition_start_time = $7,
	active = $8,
	updated_at = $9
WHERE id = $10`, string(alert.Trigger.State), alert.Trigger.DurationMinutes, string(alert.ScheduleType),
		weekdays, alert.Enabled, recipients, alert.ConditionStartTime, alert.Active,
		alert.UpdatedAt, alert.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	logAlertAudit(ctx, r.db, "alert.update", alert)
	return nil
}

// Delete removes an alert.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if id == "" {
		return alerts.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	logAlertAudit(ctx, r.db, "alert.delete", &alerts.Alert{ID: id})
	return nil
}

// FindEnabledByDevice returns enabled alerts watching a device.
func (r *AlertRepository) FindEnabledByDevice(ctx context.Context, deviceID string) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_id, trigger_state, trigger_duration_minutes, schedule_type,
	weekdays, enabled, recipients, condition_start_time, active,
	created_at, updated_at
FROM alerts
WHERE device_id = $1 AND enabled = TRUE
ORDER BY created_at ASC`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// FindPending returns alerts with a running dwell timer.
func (r *AlertRepository) FindPending(ctx context.Context) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_id, trigger_state, trigger_duration_minutes, schedule_type,
	weekdays, enabled, recipients, condition_start_time, active,
	created_at, updated_at
FROM alerts
WHERE condition_start_time IS NOT NULL
ORDER BY condition_start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// UpdateDebounceState writes condition_start_time and active in one
// statement so the pair never diverges.
func (r *AlertRepository) UpdateDebounceState(ctx context.Context, alertID string, conditionStartTime *time.Time, active bool) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alertID == "" {
		return alerts.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET condition_start_time = $1,
	active = $2,
	updated_at = $3
WHERE id = $4`, conditionStartTime, active, time.Now().UTC(), alertID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var state string
	var schedule string
	var weekdays []byte
	var recipients []byte
	var start sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.DeviceID,
		&state,
		&alert.Trigger.DurationMinutes,
		&schedule,
		&weekdays,
		&alert.Enabled,
		&recipients,
		&start,
		&alert.Active,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}
	alert.Trigger.State = directory.DeviceState(state)
	alert.ScheduleType = alerts.ScheduleType(schedule)
	if len(weekdays) > 0 {
		if err := json.Unmarshal(weekdays, &alert.Weekdays); err != nil {
			return nil, err
		}
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &alert.Recipients); err != nil {
			return nil, err
		}
	}
	if start.Valid {
		t := start.Time.UTC()
		alert.ConditionStartTime = &t
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeAlertLists(alert *alerts.Alert) ([]byte, []byte, error) {
	weekdays, err := json.Marshal(alert.Weekdays)
	if err != nil {
		return nil, nil, err
	}
	recipients, err := json.Marshal(alert.Recipients)
	if err != nil {
		return nil, nil, err
	}
	return weekdays, recipients, nil
}

func logAlertAudit(ctx context.Context, db *sql.DB, action string, alert *alerts.Alert) {
	if db == nil || alert == nil {
		return
	}
	orgID := auth.OrgIDFromContext(ctx)
	if orgID == "" {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"device_id":     alert.DeviceID,
		"trigger_state": alert.Trigger.State,
		"duration_min":  alert.Trigger.DurationMinutes,
		"schedule_type": alert.ScheduleType,
		"enabled":       alert.Enabled,
	})
	repo := audit.NewRepository(db)
	if repo == nil {
		return
	}
	_ = repo.Log(ctx, audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: "alert",
		ResourceID:   alert.ID,
		DeviceID:     alert.DeviceID,
		Metadata:     meta,
	})
}
