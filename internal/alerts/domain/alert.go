package alerts

import (
	"fmt"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// ScheduleType selects which weekdays an alert is evaluated on.
type ScheduleType string

const (
	ScheduleEveryday ScheduleType = "EVERYDAY"
	ScheduleWeekdays ScheduleType = "WEEKDAYS"
	ScheduleCustom   ScheduleType = "CUSTOM"
)

// Valid returns true when the schedule type is supported.
func (s ScheduleType) Valid() bool {
	switch s {
	case ScheduleEveryday, ScheduleWeekdays, ScheduleCustom:
		return true
	default:
		return false
	}
}

// Trigger is the condition an alert watches: the device remaining in State
// for DurationMinutes of continuous dwell.
type Trigger struct {
	State           directory.DeviceState `json:"state"`
	DurationMinutes int                   `json:"duration_minutes"`
}

// Alert watches a single device. ConditionStartTime and Active are the
// durable debounce state: Active implies ConditionStartTime is set, and
// both are cleared together on any reset or after a notification attempt.
// At most one alert exists per device.
type Alert struct {
	ID           string         `json:"id"`
	DeviceID     string         `json:"device_id"`
	Trigger      Trigger        `json:"trigger"`
	ScheduleType ScheduleType   `json:"schedule_type"`
	Weekdays     []time.Weekday `json:"weekdays,omitempty"`
	Enabled      bool           `json:"enabled"`
	Recipients   []string       `json:"recipients"`

	ConditionStartTime *time.Time `json:"condition_start_time,omitempty"`
	Active             bool       `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks alert invariants at creation time so malformed triggers
// never reach the tracker.
func (a Alert) Validate() error {
	if a.DeviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrValidation)
	}
	if !a.Trigger.State.Valid() {
		return fmt.Errorf("%w: unknown trigger state %q", ErrValidation, a.Trigger.State)
	}
	if a.Trigger.DurationMinutes < 1 {
		return fmt.Errorf("%w: trigger duration must be at least one minute", ErrValidation)
	}
	if !a.ScheduleType.Valid() {
		return fmt.Errorf("%w: unknown schedule type %q", ErrValidation, a.ScheduleType)
	}
	if a.ScheduleType == ScheduleCustom && len(a.Weekdays) == 0 {
		return fmt.Errorf("%w: custom schedule requires weekdays", ErrValidation)
	}
	for _, day := range a.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrValidation, day)
		}
	}
	if len(a.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient required", ErrValidation)
	}
	return nil
}

// ScheduleMatched is the day-of-week gate: EVERYDAY always passes,
// WEEKDAYS rejects Saturday and Sunday, CUSTOM passes only configured days.
func (a Alert) ScheduleMatched(day time.Weekday) bool {
	switch a.ScheduleType {
	case ScheduleEveryday:
		return true
	case ScheduleWeekdays:
		return day != time.Saturday && day != time.Sunday
	case ScheduleCustom:
		for _, configured := range a.Weekdays {
			if configured == day {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ConditionMet reports whether the observed state matches the trigger.
func (a Alert) ConditionMet(state directory.DeviceState) bool {
	return a.Trigger.State == state
}

// DwellSatisfied reports whether the condition has been continuously true
// long enough to fire, relative to now.
func (a Alert) DwellSatisfied(now time.Time) bool {
	if a.ConditionStartTime == nil {
		return false
	}
	return now.Sub(*a.ConditionStartTime) >= time.Duration(a.Trigger.DurationMinutes)*time.Minute
}
