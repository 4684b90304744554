package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alerts "occupancy-cloud/internal/alerts/domain"
	deviceevents "occupancy-cloud/internal/directory/application/events"
	directory "occupancy-cloud/internal/directory/domain"
)

type memStore struct {
	mu       sync.Mutex
	alerts   map[string]*alerts.Alert
	failNext int
}

func newMemStore(list ...alerts.Alert) *memStore {
	store := &memStore{alerts: make(map[string]*alerts.Alert)}
	for i := range list {
		copied := list[i]
		store.alerts[copied.ID] = &copied
	}
	return store
}

func (s *memStore) FindEnabledByDevice(_ context.Context, deviceID string) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []alerts.Alert
	for _, alert := range s.alerts {
		if alert.DeviceID == deviceID && alert.Enabled {
			result = append(result, *alert)
		}
	}
	return result, nil
}

func (s *memStore) FindPending(context.Context) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []alerts.Alert
	for _, alert := range s.alerts {
		if alert.ConditionStartTime != nil {
			result = append(result, *alert)
		}
	}
	return result, nil
}

func (s *memStore) UpdateDebounceState(_ context.Context, alertID string, start *time.Time, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("store temporarily down")
	}
	alert, ok := s.alerts[alertID]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.ConditionStartTime = start
	alert.Active = active
	return nil
}

func (s *memStore) get(t *testing.T, id string) alerts.Alert {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		t.Fatalf("alert %s missing", id)
	}
	return *alert
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func motionAlert() alerts.Alert {
	return alerts.Alert{
		ID:       "alert-1",
		DeviceID: "dev-1",
		Trigger: alerts.Trigger{
			State:           directory.StateMotionDetected,
			DurationMinutes: 10,
		},
		ScheduleType: alerts.ScheduleEveryday,
		Enabled:      true,
		Recipients:   []string{"ops@example.com"},
	}
}

func stateChange(state directory.DeviceState, at time.Time) deviceevents.DeviceStateChanged {
	return deviceevents.DeviceStateChanged{
		DeviceID:   "dev-1",
		DeviceName: "Sensor A",
		RoomID:     "room-1",
		State:      state,
		OccurredAt: at,
	}
}

func TestTrackerStartsDwellOnMatch(t *testing.T) {
	store := newMemStore(motionAlert())
	tracker, err := NewTracker(store, nopLogger{})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	if err := tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, at)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	alert := store.get(t, "alert-1")
	if alert.ConditionStartTime == nil || !alert.ConditionStartTime.Equal(at) {
		t.Fatalf("dwell not started, got %v", alert.ConditionStartTime)
	}
	if alert.Active {
		t.Fatal("starting the dwell must not fire the alert")
	}
}

func TestTrackerDoesNotRestartDwellOnRepeat(t *testing.T) {
	store := newMemStore(motionAlert())
	tracker, _ := NewTracker(store, nopLogger{})
	first := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	later := first.Add(4 * time.Minute)

	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, first))
	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, later))

	alert := store.get(t, "alert-1")
	if alert.ConditionStartTime == nil || !alert.ConditionStartTime.Equal(first) {
		t.Fatalf("repeat notification restarted dwell: %v", alert.ConditionStartTime)
	}
}

func TestTrackerResetsOnMismatch(t *testing.T) {
	store := newMemStore(motionAlert())
	tracker, _ := NewTracker(store, nopLogger{})
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, start))
	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateNoMotionDetected, start.Add(3*time.Minute)))

	alert := store.get(t, "alert-1")
	if alert.ConditionStartTime != nil || alert.Active {
		t.Fatalf("mismatch did not reset debounce state: %+v", alert)
	}
}

func TestTrackerScheduleGateBlocksDwell(t *testing.T) {
	alert := motionAlert()
	alert.ScheduleType = alerts.ScheduleWeekdays
	store := newMemStore(alert)
	tracker, _ := NewTracker(store, nopLogger{})

	// 2026-08-30 is a Sunday.
	sunday := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, sunday))

	got := store.get(t, "alert-1")
	if got.ConditionStartTime != nil {
		t.Fatal("schedule-gated alert must not start a dwell")
	}
}

func TestTrackerRetriesTransientWriteFailure(t *testing.T) {
	store := newMemStore(motionAlert())
	store.failNext = 1
	tracker, _ := NewTracker(store, nopLogger{}, WithTrackerRetry(3, time.Millisecond))
	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	if err := tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, at)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	alert := store.get(t, "alert-1")
	if alert.ConditionStartTime == nil {
		t.Fatal("transient failure was not retried")
	}
}

func TestTrackerIgnoresDisabledAlerts(t *testing.T) {
	alert := motionAlert()
	alert.Enabled = false
	store := newMemStore(alert)
	tracker, _ := NewTracker(store, nopLogger{})

	_ = tracker.HandleDeviceStateChanged(context.Background(), stateChange(directory.StateMotionDetected, time.Now()))

	got := store.get(t, "alert-1")
	if got.ConditionStartTime != nil {
		t.Fatal("disabled alert was evaluated")
	}
}
