package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

type recordingMailer struct {
	mu      sync.Mutex
	sent    [][]string
	failAll bool
}

func (m *recordingMailer) SendDeviceAlert(_ context.Context, recipients []string, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, recipients)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type stubDeviceReader struct{}

func (stubDeviceReader) GetDevice(_ context.Context, id string) (*directory.Device, error) {
	return &directory.Device{ID: id, Name: "Sensor A"}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []AlertEvent
}

func (s *recordingSink) Notify(_ context.Context, event AlertEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, event := range s.events {
		result = append(result, event.Type)
	}
	return result
}

func TestScannerDoesNotFireBeforeDwell(t *testing.T) {
	alert := motionAlert()
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	alert.ConditionStartTime = &start
	store := newMemStore(alert)
	mailer := &recordingMailer{}

	scanner, err := NewScanner(store, stubDeviceReader{}, mailer, nopLogger{})
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	if err := scanner.Tick(context.Background(), start.Add(9*time.Minute)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if mailer.count() != 0 {
		t.Fatal("alert fired before the dwell elapsed")
	}
	got := store.get(t, "alert-1")
	if got.ConditionStartTime == nil {
		t.Fatal("pending dwell must survive an early tick")
	}
}

func TestScannerFiresOnceAndClears(t *testing.T) {
	alert := motionAlert()
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	alert.ConditionStartTime = &start
	store := newMemStore(alert)
	mailer := &recordingMailer{}
	sink := &recordingSink{}

	scanner, _ := NewScanner(store, stubDeviceReader{}, mailer, nopLogger{}, WithScannerSink(sink))
	now := start.Add(10 * time.Minute)

	if err := scanner.Tick(context.Background(), now); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if mailer.count() != 1 {
		t.Fatalf("sent %d mails, want 1", mailer.count())
	}

	got := store.get(t, "alert-1")
	if got.ConditionStartTime != nil || got.Active {
		t.Fatalf("debounce state not cleared after firing: %+v", got)
	}

	// A second tick must not notify again without a fresh dwell.
	if err := scanner.Tick(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if mailer.count() != 1 {
		t.Fatalf("activation notified more than once: %d mails", mailer.count())
	}

	types := sink.types()
	if len(types) != 2 || types[0] != "fired" || types[1] != "cleared" {
		t.Fatalf("sink events = %v, want [fired cleared]", types)
	}
}

func TestScannerDispatchFailureStillConsumesActivation(t *testing.T) {
	alert := motionAlert()
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	alert.ConditionStartTime = &start
	store := newMemStore(alert)
	mailer := &recordingMailer{failAll: true}

	scanner, _ := NewScanner(store, stubDeviceReader{}, mailer, nopLogger{})
	if err := scanner.Tick(context.Background(), start.Add(15*time.Minute)); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := store.get(t, "alert-1")
	if got.ConditionStartTime != nil || got.Active {
		t.Fatalf("failed dispatch must still clear the activation: %+v", got)
	}
}

type clearFailingStore struct {
	*memStore
	failClears int
}

func (s *clearFailingStore) UpdateDebounceState(ctx context.Context, alertID string, start *time.Time, active bool) error {
	if start == nil && !active {
		s.mu.Lock()
		remaining := s.failClears
		if remaining > 0 {
			s.failClears--
		}
		s.mu.Unlock()
		if remaining > 0 {
			return errors.New("store temporarily down")
		}
	}
	return s.memStore.UpdateDebounceState(ctx, alertID, start, active)
}

func TestScannerFailedClearDoesNotRenotify(t *testing.T) {
	alert := motionAlert()
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	alert.ConditionStartTime = &start
	store := &clearFailingStore{memStore: newMemStore(alert), failClears: 1}
	mailer := &recordingMailer{}

	scanner, _ := NewScanner(store, stubDeviceReader{}, mailer, nopLogger{}, WithScannerRetry(1, 0))

	// First tick notifies but cannot clear the debounce state.
	if err := scanner.Tick(context.Background(), start.Add(15*time.Minute)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if mailer.count() != 1 {
		t.Fatalf("sent %d mails, want 1", mailer.count())
	}
	stuck := store.get(t, "alert-1")
	if stuck.ConditionStartTime == nil || !stuck.Active {
		t.Fatalf("failed clear must leave the alert fired: %+v", stuck)
	}

	// The next tick retries only the clear; the activation was already
	// notified and must not produce a second mail.
	if err := scanner.Tick(context.Background(), start.Add(16*time.Minute)); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if mailer.count() != 1 {
		t.Fatalf("activation notified %d times, want at most 1", mailer.count())
	}
	got := store.get(t, "alert-1")
	if got.ConditionStartTime != nil || got.Active {
		t.Fatalf("clear retry did not reset debounce state: %+v", got)
	}
}

func TestScannerSkipsDisabledAlerts(t *testing.T) {
	alert := motionAlert()
	alert.Enabled = false
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	alert.ConditionStartTime = &start
	store := newMemStore(alert)
	mailer := &recordingMailer{}

	scanner, _ := NewScanner(store, stubDeviceReader{}, mailer, nopLogger{})
	if err := scanner.Tick(context.Background(), start.Add(time.Hour)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if mailer.count() != 0 {
		t.Fatal("disabled alert was fired")
	}
}
