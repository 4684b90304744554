package eventlog

import (
	"testing"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 8, 31, hour, min, 0, 0, time.UTC)
}

func TestReconstructEmpty(t *testing.T) {
	if intervals := Reconstruct(nil, at(12, 0)); intervals != nil {
		t.Fatalf("expected nil intervals, got %v", intervals)
	}
}

func TestReconstructSingleEvent(t *testing.T) {
	events := []Event{{ID: "e1", DeviceID: "d1", State: directory.StateMotionDetected, CreatedAt: at(9, 0)}}
	now := at(10, 30)

	intervals := Reconstruct(events, now)
	if len(intervals) != 1 {
		t.Fatalf("got %d intervals, want 1", len(intervals))
	}
	got := intervals[0]
	if got.State != directory.StateMotionDetected || !got.From.Equal(at(9, 0)) || !got.To.Equal(now) {
		t.Fatalf("unexpected interval %+v", got)
	}
}

func TestReconstructTransitions(t *testing.T) {
	events := []Event{
		{State: directory.StateMotionDetected, CreatedAt: at(9, 0)},
		{State: directory.StateNoMotionDetected, CreatedAt: at(9, 20)},
		{State: directory.StateMotionDetected, CreatedAt: at(9, 50)},
	}
	now := at(10, 10)

	intervals := Reconstruct(events, now)
	if len(intervals) != 3 {
		t.Fatalf("got %d intervals, want 3", len(intervals))
	}

	// Contiguity: each interval starts where the previous one ended.
	for i := 1; i < len(intervals); i++ {
		if !intervals[i].From.Equal(intervals[i-1].To) {
			t.Fatalf("gap between interval %d and %d: %v != %v", i-1, i, intervals[i-1].To, intervals[i].From)
		}
	}

	// Durations cover the whole span from first event to now.
	var total time.Duration
	for _, interval := range intervals {
		total += interval.Duration()
	}
	if want := now.Sub(at(9, 0)); total != want {
		t.Fatalf("total duration = %v, want %v", total, want)
	}

	if intervals[0].State != directory.StateMotionDetected || intervals[0].Duration() != 20*time.Minute {
		t.Fatalf("unexpected first interval %+v", intervals[0])
	}
	if intervals[1].State != directory.StateNoMotionDetected || intervals[1].Duration() != 30*time.Minute {
		t.Fatalf("unexpected second interval %+v", intervals[1])
	}
	if intervals[2].State != directory.StateMotionDetected || !intervals[2].To.Equal(now) {
		t.Fatalf("unexpected last interval %+v", intervals[2])
	}
}

func TestReconstructCollapsesRepeatedStates(t *testing.T) {
	events := []Event{
		{State: directory.StateMotionDetected, CreatedAt: at(9, 0)},
		{State: directory.StateMotionDetected, CreatedAt: at(9, 10)},
		{State: directory.StateMotionDetected, CreatedAt: at(9, 20)},
		{State: directory.StateNoMotionDetected, CreatedAt: at(9, 45)},
	}
	now := at(10, 0)

	intervals := Reconstruct(events, now)
	if len(intervals) != 2 {
		t.Fatalf("got %d intervals, want 2", len(intervals))
	}
	if intervals[0].Duration() != 45*time.Minute {
		t.Fatalf("collapsed interval duration = %v, want 45m", intervals[0].Duration())
	}
}
