package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// RoomRepository is a Postgres implementation for rooms.
type RoomRepository struct {
	db *sql.DB
}

// NewRoomRepository constructs a repository.
func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, organization_id, site_id, building_id, floor_id, name, function, department,
	division, cluster, net_useable_area, max_desk_occupation, num_workstations,
	hours_per_day, occupancy, occupancy_updated_at, created_at`

// Create inserts a room.
func (r *RoomRepository) Create(ctx context.Context, room *directory.Room) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if room == nil {
		return errors.New("room repo: nil room")
	}
	if room.ID == "" || room.FloorID == "" {
		return fmt.Errorf("%w: room requires id and floor", directory.ErrValidation)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rooms (
	id, organization_id, site_id, building_id, floor_id, name, function, department,
	division, cluster, net_useable_area, max_desk_occupation, num_workstations,
	hours_per_day, occupancy, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13,
	$14, $15, $16
)`, room.ID, room.OrganizationID, room.SiteID, room.BuildingID, room.FloorID, room.Name, room.Function, room.Department,
		room.Division, room.Cluster, room.NetUseableArea, room.MaxDeskOccupation, room.NumWorkstations,
		room.HoursPerDay, room.Occupancy, room.CreatedAt)
	return err
}

// GetRoom loads a room by id.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (*directory.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	if id == "" {
		return nil, errors.New("room repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+roomColumns+`
FROM rooms
WHERE id = $1
LIMIT 1`, id)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// ListRooms returns rooms matching the hierarchy filter.
func (r *RoomRepository) ListRooms(ctx context.Context, filter directory.RoomFilter) ([]directory.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}

	query := `
SELECT ` + roomColumns + `
FROM rooms`
	var clauses []string
	var args []any
	appendIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, value := range values {
			args = append(args, value)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	}
	appendIn("organization_id", filter.OrganizationIDs)
	appendIn("site_id", filter.SiteIDs)
	appendIn("building_id", filter.BuildingIDs)
	appendIn("floor_id", filter.FloorIDs)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\nORDER BY name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update replaces the room's editable fields.
func (r *RoomRepository) Update(ctx context.Context, room *directory.Room) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if room == nil || room.ID == "" {
		return errors.New("room repo: nil room")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE rooms
SET name = $1,
	function = $2,
	department = $3,
	division = $4,
	cluster = $5,
	net_useable_area = $6,
	max_desk_occupation = $7,
	num_workstations = $8,
	hours_per_day = $9
WHERE id = $10`, room.Name, room.Function, room.Department, room.Division, room.Cluster,
		room.NetUseableArea, room.MaxDeskOccupation, room.NumWorkstations, room.HoursPerDay, room.ID)
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

// Delete removes a room.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
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

// SetRoomOccupancy writes the cached occupancy percentage.
func (r *RoomRepository) SetRoomOccupancy(ctx context.Context, roomID string, percentage float64, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if roomID == "" {
		return directory.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE rooms
SET occupancy = $1,
	occupancy_updated_at = $2
WHERE id = $3`, percentage, at.UTC(), roomID)
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

// OpeningHours returns the room's configured hours per day.
func (r *RoomRepository) OpeningHours(ctx context.Context, roomID string) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("room repo: nil db")
	}
	var hours float64
	if err := r.db.QueryRowContext(ctx, `SELECT hours_per_day FROM rooms WHERE id = $1`, roomID).Scan(&hours); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, directory.ErrNotFound
		}
		return 0, err
	}
	return hours, nil
}

func scanRoom(row rowScanner) (*directory.Room, error) {
	var room directory.Room
	var updatedAt sql.NullTime
	if err := row.Scan(
		&room.ID,
		&room.OrganizationID,
		&room.SiteID,
		&room.BuildingID,
		&room.FloorID,
		&room.Name,
		&room.Function,
		&room.Department,
		&room.Division,
		&room.Cluster,
		&room.NetUseableArea,
		&room.MaxDeskOccupation,
		&room.NumWorkstations,
		&room.HoursPerDay,
		&room.Occupancy,
		&updatedAt,
		&room.CreatedAt,
	); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		room.OccupancyUpdatedAt = updatedAt.Time.UTC()
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return &room, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
