package directory

import "time"

// DeviceState is the reported occupancy state of a sensor.
type DeviceState string

const (
	StateMotionDetected   DeviceState = "MOTION_DETECTED"
	StateNoMotionDetected DeviceState = "NO_MOTION_DETECTED"
)

// Valid returns true when the state is a known sensor state.
func (s DeviceState) Valid() bool {
	switch s {
	case StateMotionDetected, StateNoMotionDetected:
		return true
	default:
		return false
	}
}

// Device is an occupancy sensor mounted in exactly one room.
type Device struct {
	ID             string      `json:"id"`
	OEM            string      `json:"oem"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	State          DeviceState `json:"state"`
	SignalStrength int         `json:"signal_strength"`
	Offline        bool        `json:"offline"`
	OrganizationID string      `json:"organization_id"`
	SiteID         string      `json:"site_id"`
	BuildingID     string      `json:"building_id"`
	FloorID        string      `json:"floor_id"`
	RoomID         string      `json:"room_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// DevicePatch carries the fields the ingest path may mutate.
type DevicePatch struct {
	State          *DeviceState
	SignalStrength *int
	Offline        *bool
}

// DeviceStats summarizes fleet connectivity.
type DeviceStats struct {
	TotalDevices int `json:"total_devices"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
}
