package events

import (
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// DeviceStateChanged is published once per observed device state mutation.
// The alert condition tracker consumes it; the event log persists the same
// mutation independently on the ingest path.
type DeviceStateChanged struct {
	DeviceID      string                `json:"device_id"`
	DeviceName    string                `json:"device_name"`
	RoomID        string                `json:"room_id"`
	State         directory.DeviceState `json:"state"`
	PreviousState directory.DeviceState `json:"previous_state"`
	OccurredAt    time.Time             `json:"occurred_at"`
}
