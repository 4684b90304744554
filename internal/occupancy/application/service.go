package application

import (
	"context"
	"errors"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
	occupancy "occupancy-cloud/internal/occupancy/domain"
)

const defaultHoursPerDay = 8

// RoomStore is the directory surface the aggregator reads and writes.
type RoomStore interface {
	GetRoom(ctx context.Context, id string) (*directory.Room, error)
	ListRooms(ctx context.Context, filter directory.RoomFilter) ([]directory.Room, error)
	SetRoomOccupancy(ctx context.Context, roomID string, percentage float64, at time.Time) error
}

// DeviceLister loads the devices mounted in a room.
type DeviceLister interface {
	DevicesInRoom(ctx context.Context, roomID string) ([]directory.Device, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Logger is the minimal logging contract used by this package.
type Logger interface {
	Printf(format string, v ...any)
}

// DeviceOccupancy is the computed occupancy of one sensor over a window.
type DeviceOccupancy struct {
	DeviceID         string                        `json:"device_id"`
	MotionMinutes    float64                       `json:"motion_minutes"`
	AvailableMinutes float64                       `json:"available_minutes"`
	Percentage       float64                       `json:"percentage"`
	ByHour           map[occupancy.HourKey]float64 `json:"by_hour,omitempty"`
}

// RoomOccupancy is the unweighted mean over a room's devices.
type RoomOccupancy struct {
	RoomID     string            `json:"room_id"`
	RoomName   string            `json:"room_name"`
	Percentage float64           `json:"percentage"`
	Band       occupancy.Band    `json:"band"`
	Devices    []DeviceOccupancy `json:"devices,omitempty"`
}

// Summary aggregates the cached room occupancy values for the portfolio.
type Summary struct {
	Rooms      int        `json:"rooms"`
	Red        int        `json:"red"`
	Amber      int        `json:"amber"`
	Green      int        `json:"green"`
	Mean       float64    `json:"mean"`
	PerRoom    []RoomBand `json:"per_room"`
	ComputedAt time.Time  `json:"computed_at"`
}

// RoomBand is one room's cached occupancy with its band.
type RoomBand struct {
	RoomID     string         `json:"room_id"`
	RoomName   string         `json:"room_name"`
	Percentage float64        `json:"percentage"`
	Band       occupancy.Band `json:"band"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// Service computes device and room occupancy from the event log.
type Service struct {
	events  eventlog.Store
	rooms   RoomStore
	devices DeviceLister
	clock   Clock
	logger  Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithServiceClock assigns a clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs an occupancy service.
func NewService(events eventlog.Store, rooms RoomStore, devices DeviceLister, logger Logger, opts ...ServiceOption) (*Service, error) {
	if events == nil {
		return nil, errors.New("occupancy service: nil event store")
	}
	if rooms == nil {
		return nil, errors.New("occupancy service: nil room store")
	}
	if devices == nil {
		return nil, errors.New("occupancy service: nil device lister")
	}
	if logger == nil {
		return nil, errors.New("occupancy service: nil logger")
	}
	service := &Service{
		events:  events,
		rooms:   rooms,
		devices: devices,
		clock:   systemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ComputeDeviceOccupancy reconstructs the device's intervals over the
// window and measures motion time against the opening hours.
func (s *Service) ComputeDeviceOccupancy(ctx context.Context, deviceID string, window eventlog.Window, hoursPerDay float64) (*DeviceOccupancy, error) {
	if s == nil {
		return nil, errors.New("occupancy service: nil service")
	}
	if deviceID == "" {
		return nil, errors.New("occupancy service: empty device id")
	}
	if hoursPerDay <= 0 {
		hoursPerDay = defaultHoursPerDay
	}

	events, err := s.events.QueryRange(ctx, deviceID, window)
	if err != nil {
		return nil, err
	}

	// An open interval ends at now, clamped to the window so future time
	// never counts as occupied.
	closeAt := s.clock.Now().UTC()
	if window.To.Before(closeAt) {
		closeAt = window.To.UTC()
	}

	intervals := eventlog.Reconstruct(events, closeAt)
	motion := occupancy.MotionMinutes(intervals)
	days := countDays(window)
	available := hoursPerDay * 60 * float64(days)

	return &DeviceOccupancy{
		DeviceID:         deviceID,
		MotionMinutes:    motion,
		AvailableMinutes: available,
		Percentage:       occupancy.Percentage(motion, available),
		ByHour:           occupancy.MotionMinutesByHour(intervals),
	}, nil
}

// ComputeRoomOccupancy takes the unweighted mean over the room's devices.
// A device whose aggregation fails contributes zero and is logged; the
// room result is still produced.
func (s *Service) ComputeRoomOccupancy(ctx context.Context, roomID string, window eventlog.Window) (*RoomOccupancy, error) {
	if s == nil {
		return nil, errors.New("occupancy service: nil service")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, directory.ErrNotFound
	}

	devices, err := s.devices.DevicesInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	result := &RoomOccupancy{RoomID: room.ID, RoomName: room.Name}
	if len(devices) == 0 {
		result.Band = occupancy.Classify(0)
		return result, nil
	}

	var sum float64
	for _, device := range devices {
		deviceResult, err := s.ComputeDeviceOccupancy(ctx, device.ID, window, room.HoursPerDay)
		if err != nil {
			s.logger.Printf("occupancy: device %s aggregation failed, counting zero: %v", device.ID, err)
			deviceResult = &DeviceOccupancy{DeviceID: device.ID}
		}
		result.Devices = append(result.Devices, *deviceResult)
		sum += deviceResult.Percentage
	}
	result.Percentage = sum / float64(len(devices))
	result.Band = occupancy.Classify(result.Percentage)
	return result, nil
}

// Summarize reads the cached per-room occupancy and counts bands.
func (s *Service) Summarize(ctx context.Context, filter directory.RoomFilter) (*Summary, error) {
	if s == nil {
		return nil, errors.New("occupancy service: nil service")
	}
	rooms, err := s.rooms.ListRooms(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Rooms: len(rooms), ComputedAt: s.clock.Now().UTC()}
	var sum float64
	for _, room := range rooms {
		band := occupancy.Classify(room.Occupancy)
		switch band {
		case occupancy.BandRed:
			summary.Red++
		case occupancy.BandAmber:
			summary.Amber++
		case occupancy.BandGreen:
			summary.Green++
		}
		sum += room.Occupancy
		summary.PerRoom = append(summary.PerRoom, RoomBand{
			RoomID:     room.ID,
			RoomName:   room.Name,
			Percentage: room.Occupancy,
			Band:       band,
			UpdatedAt:  room.OccupancyUpdatedAt,
		})
	}
	if len(rooms) > 0 {
		summary.Mean = sum / float64(len(rooms))
	}
	return summary, nil
}

// countDays counts the calendar days a window touches, skipping Saturday
// and Sunday when the window excludes weekends. A window inside one day
// counts as one.
func countDays(window eventlog.Window) int {
	from := window.From.UTC().Truncate(24 * time.Hour)
	to := window.To.UTC()
	days := 0
	for cursor := from; cursor.Before(to); cursor = cursor.Add(24 * time.Hour) {
		if window.ExcludeWeekends {
			day := cursor.Weekday()
			if day == time.Saturday || day == time.Sunday {
				continue
			}
		}
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
