package application

import (
	"context"
	"errors"
	"time"

	alerts "occupancy-cloud/internal/alerts/domain"
	deviceevents "occupancy-cloud/internal/directory/application/events"
	"occupancy-cloud/internal/observability/metrics"
)

// AlertStore is the persistence contract the tracker and scanner share.
// UpdateDebounceState writes conditionStartTime and active together; the
// two fields are never mutated independently.
type AlertStore interface {
	FindEnabledByDevice(ctx context.Context, deviceID string) ([]alerts.Alert, error)
	FindPending(ctx context.Context) ([]alerts.Alert, error)
	UpdateDebounceState(ctx context.Context, alertID string, conditionStartTime *time.Time, active bool) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Tracker evaluates device state-change notifications against alert
// conditions and maintains the persisted debounce state.
type Tracker struct {
	store       AlertStore
	clock       Clock
	logger      Logger
	maxAttempts int
	backoff     time.Duration
}

// Logger is the minimal logging contract used by this package.
type Logger interface {
	Printf(format string, v ...any)
}

// TrackerOption customizes the tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock assigns a clock.
func WithTrackerClock(clock Clock) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithTrackerRetry bounds debounce-write retries.
func WithTrackerRetry(attempts int, backoff time.Duration) TrackerOption {
	return func(t *Tracker) {
		if attempts > 0 {
			t.maxAttempts = attempts
		}
		if backoff >= 0 {
			t.backoff = backoff
		}
	}
}

// NewTracker constructs a tracker.
func NewTracker(store AlertStore, logger Logger, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("alert tracker: nil store")
	}
	if logger == nil {
		return nil, errors.New("alert tracker: nil logger")
	}
	tracker := &Tracker{
		store:       store,
		clock:       systemClock{},
		logger:      logger,
		maxAttempts: 3,
		backoff:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// HandleDeviceStateChanged runs one evaluation cycle for every enabled
// alert on the mutated device.
//
// A matching schedule and state starts the dwell timer if none is running;
// repeated notifications of the same matching state never restart it. Any
// mismatch - schedule gate closed or a differing state, related or not -
// cancels the pending dwell and clears the fired flag atomically.
func (t *Tracker) HandleDeviceStateChanged(ctx context.Context, evt deviceevents.DeviceStateChanged) error {
	if t == nil {
		return errors.New("alert tracker: nil tracker")
	}
	if evt.DeviceID == "" {
		return errors.New("alert tracker: event missing device id")
	}

	alertList, err := t.store.FindEnabledByDevice(ctx, evt.DeviceID)
	if err != nil {
		return err
	}
	if len(alertList) == 0 {
		return nil
	}

	at := evt.OccurredAt
	if at.IsZero() {
		at = t.clock.Now()
	}

	for _, alert := range alertList {
		if err := t.evaluate(ctx, alert, evt, at); err != nil {
			// A failed debounce write leaves the stored state untouched;
			// the next notification or tick retries naturally.
			t.logger.Printf("alert tracker: alert %s evaluation skipped: %v", alert.ID, err)
			metrics.IncAlertEvent("evaluation_skipped")
		}
	}
	return nil
}

func (t *Tracker) evaluate(ctx context.Context, alert alerts.Alert, evt deviceevents.DeviceStateChanged, at time.Time) error {
	matched := alert.ScheduleMatched(at.Weekday()) && alert.ConditionMet(evt.State)

	if matched {
		if alert.ConditionStartTime != nil {
			return nil
		}
		start := at.UTC()
		if err := t.writeDebounce(ctx, alert.ID, &start, false); err != nil {
			return err
		}
		metrics.IncAlertEvent("dwell_started")
		return nil
	}

	if alert.ConditionStartTime == nil && !alert.Active {
		return nil
	}
	if err := t.writeDebounce(ctx, alert.ID, nil, false); err != nil {
		return err
	}
	metrics.IncAlertEvent("dwell_reset")
	return nil
}

// writeDebounce retries transient store failures with linear backoff up to
// the configured attempt bound.
func (t *Tracker) writeDebounce(ctx context.Context, alertID string, start *time.Time, active bool) error {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		lastErr = t.store.UpdateDebounceState(ctx, alertID, start, active)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, alerts.ErrNotFound) {
			return lastErr
		}
		if attempt == t.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
