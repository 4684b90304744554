package occupancy

import (
	"time"

	eventlog "occupancy-cloud/internal/eventlog/domain"
)

// HourKey identifies one calendar-hour bucket.
// It is used as part of the unique key: roomId/deviceId + hourKey.
type HourKey string

const hourKeyLayout = "2006-01-02T15"

// NewHourKey builds the bucket key for the hour containing t.
func NewHourKey(t time.Time) HourKey {
	return HourKey(t.Format(hourKeyLayout))
}

// String returns the raw key for storage and map use.
func (k HourKey) String() string { return string(k) }

// SplitByHour distributes an interval's duration across the calendar-hour
// buckets it touches. The interval is cut at every hour boundary and each
// bucket receives exactly the overlapping minutes, so the per-bucket totals
// sum to the interval duration with no loss and no double counting.
func SplitByHour(interval eventlog.Interval) map[HourKey]float64 {
	if !interval.To.After(interval.From) {
		return nil
	}

	buckets := make(map[HourKey]float64)
	cursor := interval.From
	for cursor.Before(interval.To) {
		hourEnd := cursor.Truncate(time.Hour).Add(time.Hour)
		segmentEnd := hourEnd
		if interval.To.Before(hourEnd) {
			segmentEnd = interval.To
		}
		buckets[NewHourKey(cursor)] += segmentEnd.Sub(cursor).Minutes()
		cursor = segmentEnd
	}
	return buckets
}

// MotionMinutesByHour accumulates motion time from a set of intervals into
// hour buckets, skipping non-motion states.
func MotionMinutesByHour(intervals []eventlog.Interval) map[HourKey]float64 {
	buckets := make(map[HourKey]float64)
	for _, interval := range intervals {
		if !IsMotion(interval.State) {
			continue
		}
		for key, minutes := range SplitByHour(interval) {
			buckets[key] += minutes
		}
	}
	return buckets
}
