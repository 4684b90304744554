package eventlog

import "time"

// Reconstruct converts an ordered event sequence for one device into
// contiguous, non-overlapping intervals ordered by From. The first event
// opens the first interval; a differing state closes the open interval at
// the new event's timestamp; consecutive events repeating the same state
// are collapsed into the open interval. The last interval closes at now.
//
// The result is a pure function of the input sequence and now. An empty
// input yields no intervals; a single event yields one interval
// [createdAt, now).
func Reconstruct(events []Event, now time.Time) []Interval {
	if len(events) == 0 {
		return nil
	}

	intervals := make([]Interval, 0, len(events))
	open := Interval{State: events[0].State, From: events[0].CreatedAt}

	for _, event := range events[1:] {
		if event.State == open.State {
			continue
		}
		open.To = event.CreatedAt
		intervals = append(intervals, open)
		open = Interval{State: event.State, From: event.CreatedAt}
	}

	open.To = now
	intervals = append(intervals, open)
	return intervals
}
