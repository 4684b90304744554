package occupancy

import (
	"math"
	"testing"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
)

func interval(state directory.DeviceState, fromH, fromM, toH, toM int) eventlog.Interval {
	return eventlog.Interval{
		State: state,
		From:  time.Date(2026, 8, 31, fromH, fromM, 0, 0, time.UTC),
		To:    time.Date(2026, 8, 31, toH, toM, 0, 0, time.UTC),
	}
}

func TestSplitByHourAcrossBoundary(t *testing.T) {
	// 09:50-10:20 splits into 10 minutes in the 09 bucket and 20 in the 10 bucket.
	buckets := SplitByHour(interval(directory.StateMotionDetected, 9, 50, 10, 20))
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if got := buckets[HourKey("2026-08-31T09")]; got != 10 {
		t.Fatalf("09 bucket = %v, want 10", got)
	}
	if got := buckets[HourKey("2026-08-31T10")]; got != 20 {
		t.Fatalf("10 bucket = %v, want 20", got)
	}
}

func TestSplitByHourConservesMinutes(t *testing.T) {
	span := interval(directory.StateMotionDetected, 8, 17, 13, 42)
	buckets := SplitByHour(span)

	var total float64
	for _, minutes := range buckets {
		total += minutes
	}
	if want := span.Duration().Minutes(); math.Abs(total-want) > 1e-9 {
		t.Fatalf("bucket sum = %v, want %v", total, want)
	}
}

func TestSplitByHourWithinOneHour(t *testing.T) {
	buckets := SplitByHour(interval(directory.StateMotionDetected, 14, 5, 14, 35))
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(buckets))
	}
	if got := buckets[HourKey("2026-08-31T14")]; got != 30 {
		t.Fatalf("14 bucket = %v, want 30", got)
	}
}

func TestSplitByHourEmptyInterval(t *testing.T) {
	if buckets := SplitByHour(interval(directory.StateMotionDetected, 9, 0, 9, 0)); buckets != nil {
		t.Fatalf("expected nil buckets, got %v", buckets)
	}
}

func TestMotionMinutesByHourSkipsNoMotion(t *testing.T) {
	intervals := []eventlog.Interval{
		interval(directory.StateMotionDetected, 9, 0, 9, 30),
		interval(directory.StateNoMotionDetected, 9, 30, 10, 0),
		interval(directory.StateMotionDetected, 10, 0, 10, 15),
	}
	buckets := MotionMinutesByHour(intervals)
	if got := buckets[HourKey("2026-08-31T09")]; got != 30 {
		t.Fatalf("09 bucket = %v, want 30", got)
	}
	if got := buckets[HourKey("2026-08-31T10")]; got != 15 {
		t.Fatalf("10 bucket = %v, want 15", got)
	}
}
