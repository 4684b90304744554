package occupancy

import (
	"testing"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		percentage float64
		want       Band
	}{
		{0, BandRed},
		{59.9, BandRed},
		{60, BandRed},
		{60.01, BandAmber},
		{80, BandAmber},
		{80.01, BandGreen},
		{100, BandGreen},
		{130, BandGreen},
	}
	for _, tc := range cases {
		if got := Classify(tc.percentage); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.percentage, got, tc.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(240, 480); got != 50 {
		t.Fatalf("Percentage(240, 480) = %v, want 50", got)
	}
	// No upper cap: multi-sensor or overtime windows can exceed 100.
	if got := Percentage(600, 480); got != 125 {
		t.Fatalf("Percentage(600, 480) = %v, want 125", got)
	}
	if got := Percentage(100, 0); got != 0 {
		t.Fatalf("Percentage with zero available = %v, want 0", got)
	}
	if got := Percentage(100, -10); got != 0 {
		t.Fatalf("Percentage with negative available = %v, want 0", got)
	}
}

func TestMotionMinutes(t *testing.T) {
	intervals := []eventlog.Interval{
		interval(directory.StateMotionDetected, 9, 0, 9, 45),
		interval(directory.StateNoMotionDetected, 9, 45, 10, 30),
		interval(directory.StateMotionDetected, 10, 30, 10, 45),
	}
	if got := MotionMinutes(intervals); got != 60 {
		t.Fatalf("MotionMinutes = %v, want 60", got)
	}
	if got := MotionMinutes(nil); got != 0 {
		t.Fatalf("MotionMinutes(nil) = %v, want 0", got)
	}
}
