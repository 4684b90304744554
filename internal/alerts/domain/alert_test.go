package alerts

import (
	"errors"
	"testing"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

func validAlert() Alert {
	return Alert{
		ID:       "alert-1",
		DeviceID: "dev-1",
		Trigger: Trigger{
			State:           directory.StateMotionDetected,
			DurationMinutes: 5,
		},
		ScheduleType: ScheduleEveryday,
		Enabled:      true,
		Recipients:   []string{"ops@example.com"},
	}
}

func TestValidate(t *testing.T) {
	if err := validAlert().Validate(); err != nil {
		t.Fatalf("valid alert rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Alert)
	}{
		{"empty device", func(a *Alert) { a.DeviceID = "" }},
		{"unknown state", func(a *Alert) { a.Trigger.State = "BROKEN" }},
		{"zero duration", func(a *Alert) { a.Trigger.DurationMinutes = 0 }},
		{"unknown schedule", func(a *Alert) { a.ScheduleType = "SOMETIMES" }},
		{"custom without weekdays", func(a *Alert) { a.ScheduleType = ScheduleCustom; a.Weekdays = nil }},
		{"no recipients", func(a *Alert) { a.Recipients = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert := validAlert()
			tc.mutate(&alert)
			if err := alert.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestScheduleMatched(t *testing.T) {
	everyday := validAlert()
	for day := time.Sunday; day <= time.Saturday; day++ {
		if !everyday.ScheduleMatched(day) {
			t.Errorf("everyday schedule rejected %s", day)
		}
	}

	weekdays := validAlert()
	weekdays.ScheduleType = ScheduleWeekdays
	if weekdays.ScheduleMatched(time.Saturday) || weekdays.ScheduleMatched(time.Sunday) {
		t.Error("weekday schedule matched a weekend day")
	}
	if !weekdays.ScheduleMatched(time.Monday) || !weekdays.ScheduleMatched(time.Friday) {
		t.Error("weekday schedule rejected a weekday")
	}

	custom := validAlert()
	custom.ScheduleType = ScheduleCustom
	custom.Weekdays = []time.Weekday{time.Tuesday, time.Thursday}
	for day := time.Sunday; day <= time.Saturday; day++ {
		want := day == time.Tuesday || day == time.Thursday
		if got := custom.ScheduleMatched(day); got != want {
			t.Errorf("custom schedule on %s = %v, want %v", day, got, want)
		}
	}
}

func TestDwellSatisfied(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	alert := validAlert()

	if alert.DwellSatisfied(now) {
		t.Fatal("dwell satisfied without a running timer")
	}

	start := now.Add(-5 * time.Minute)
	alert.ConditionStartTime = &start
	if !alert.DwellSatisfied(now) {
		t.Fatal("dwell of exactly the configured duration must satisfy")
	}

	late := now.Add(-4 * time.Minute)
	alert.ConditionStartTime = &late
	if alert.DwellSatisfied(now) {
		t.Fatal("dwell shorter than the configured duration must not satisfy")
	}
}

func TestConditionMet(t *testing.T) {
	alert := validAlert()
	if !alert.ConditionMet(directory.StateMotionDetected) {
		t.Fatal("matching state not recognized")
	}
	if alert.ConditionMet(directory.StateNoMotionDetected) {
		t.Fatal("differing state matched")
	}
}
