package occupancy

import (
	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
)

// Band is the facility-health classification of an occupancy percentage.
type Band string

const (
	BandRed   Band = "red"
	BandAmber Band = "amber"
	BandGreen Band = "green"
)

// Classify maps an occupancy percentage to its band. The lower bucket is
// inclusive: exactly 60 is red and exactly 80 is amber. This boundary is a
// visible business rule and must not drift.
func Classify(percentage float64) Band {
	switch {
	case percentage <= 60:
		return BandRed
	case percentage <= 80:
		return BandAmber
	default:
		return BandGreen
	}
}

// IsMotion reports whether a state counts toward occupied time.
func IsMotion(state directory.DeviceState) bool {
	return state == directory.StateMotionDetected
}

// MotionMinutes sums the duration of motion intervals.
func MotionMinutes(intervals []eventlog.Interval) float64 {
	var minutes float64
	for _, interval := range intervals {
		if IsMotion(interval.State) {
			minutes += interval.Duration().Minutes()
		}
	}
	return minutes
}

// Percentage computes occupied time against available time, both in
// minutes. The engine does not cap the result at 100: partial-day and
// multi-day windows feed the same formula and callers decide presentation.
func Percentage(motionMinutes, availableMinutes float64) float64 {
	if availableMinutes <= 0 {
		return 0
	}
	return motionMinutes / availableMinutes * 100
}
