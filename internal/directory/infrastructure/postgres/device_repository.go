package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id, oem, name, device_type, state, signal_strength, offline,
	organization_id, site_id, building_id, floor_id, room_id, created_at, updated_at`

// Create inserts a device.
func (r *DeviceRepository) Create(ctx context.Context, device *directory.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if device.ID == "" || device.RoomID == "" {
		return fmt.Errorf("%w: device requires id and room", directory.ErrValidation)
	}
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = device.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO devices (
	id, oem, name, device_type, state, signal_strength, offline,
	organization_id, site_id, building_id, floor_id, room_id, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12, $13, $14
)`, device.ID, device.OEM, device.Name, device.Type, string(device.State), device.SignalStrength, device.Offline,
		device.OrganizationID, device.SiteID, device.BuildingID, device.FloorID, device.RoomID,
		device.CreatedAt, device.UpdatedAt)
	return err
}

// GetDevice loads a device by id.
func (r *DeviceRepository) GetDevice(ctx context.Context, id string) (*directory.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE id = $1
LIMIT 1`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// GetByOEM loads a device by its manufacturer identifier, the key the
// ingest connector addresses devices with.
func (r *DeviceRepository) GetByOEM(ctx context.Context, oem string) (*directory.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if oem == "" {
		return nil, errors.New("device repo: empty oem id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE oem = $1
LIMIT 1`, oem)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// List returns one page of devices with the unpaged total.
func (r *DeviceRepository) List(ctx context.Context, page, limit int, search string) ([]directory.Device, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("device repo: nil db")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	countQuery := `SELECT COUNT(*) FROM devices`
	listQuery := `
SELECT ` + deviceColumns + `
FROM devices`
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		countQuery += ` WHERE name ILIKE $1`
		listQuery += `
WHERE name ILIKE $1`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, (page-1)*limit)
	listQuery += fmt.Sprintf(`
ORDER BY name ASC
LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []directory.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// DevicesInRoom returns all devices mounted in a room.
func (r *DeviceRepository) DevicesInRoom(ctx context.Context, roomID string) ([]directory.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if roomID == "" {
		return nil, errors.New("device repo: empty room id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE room_id = $1
ORDER BY name ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update replaces the device's editable fields.
func (r *DeviceRepository) Update(ctx context.Context, device *directory.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil || device.ID == "" {
		return errors.New("device repo: nil device")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE devices
SET name = $1,
	device_type = $2,
	room_id = $3,
	updated_at = $4
WHERE id = $5`, device.Name, device.Type, device.RoomID, time.Now().UTC(), device.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// ApplyPatchByOEM mutates only the ingest-owned fields of the device the
// connector addressed, returning the refreshed device.
func (r *DeviceRepository) ApplyPatchByOEM(ctx context.Context, oem string, patch directory.DevicePatch) (*directory.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if oem == "" {
		return nil, errors.New("device repo: empty oem id")
	}

	query := `
UPDATE devices
SET updated_at = $1`
	args := []any{time.Now().UTC()}
	if patch.State != nil {
		args = append(args, string(*patch.State))
		query += fmt.Sprintf(",\n\tstate = $%d", len(args))
	}
	if patch.SignalStrength != nil {
		args = append(args, *patch.SignalStrength)
		query += fmt.Sprintf(",\n\tsignal_strength = $%d", len(args))
	}
	if patch.Offline != nil {
		args = append(args, *patch.Offline)
		query += fmt.Sprintf(",\n\toffline = $%d", len(args))
	}
	args = append(args, oem)
	query += fmt.Sprintf("\nWHERE oem = $%d", len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, directory.ErrNotFound
	}
	return r.GetByOEM(ctx, oem)
}

// Delete removes a device.
func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// Stats summarizes fleet connectivity.
func (r *DeviceRepository) Stats(ctx context.Context) (*directory.DeviceStats, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	var stats directory.DeviceStats
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COUNT(*) FILTER (WHERE NOT offline),
	COUNT(*) FILTER (WHERE offline)
FROM devices`).Scan(&stats.TotalDevices, &stats.Online, &stats.Offline)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanDevice(row rowScanner) (*directory.Device, error) {
	var device directory.Device
	var state string
	if err := row.Scan(
		&device.ID,
		&device.OEM,
		&device.Name,
		&device.Type,
		&state,
		&device.SignalStrength,
		&device.Offline,
		&device.OrganizationID,
		&device.SiteID,
		&device.BuildingID,
		&device.FloorID,
		&device.RoomID,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	device.State = directory.DeviceState(state)
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}
