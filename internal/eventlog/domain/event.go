package eventlog

import (
	"context"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// Event is one immutable device state transition. Events are never updated
// or deleted; for a fixed device they are totally ordered by CreatedAt.
type Event struct {
	ID        string                `json:"id"`
	DeviceID  string                `json:"device_id"`
	State     directory.DeviceState `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
}

// Interval is a derived contiguous span during which a device held one
// state. Transient, never persisted.
type Interval struct {
	State directory.DeviceState `json:"state"`
	From  time.Time             `json:"from"`
	To    time.Time             `json:"to"`
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.To.Sub(i.From)
}

// Window restricts an event query. To is inclusive up to end of day on the
// write path; ExcludeWeekends drops Saturday/Sunday events at the query
// filter so intervals are never split mid-day afterwards.
type Window struct {
	From            time.Time
	To              time.Time
	ExcludeWeekends bool
}

// Store is the append-only event log contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	QueryRange(ctx context.Context, deviceID string, window Window) ([]Event, error)
}
