package schedule

import "time"

// NextFire returns the next instant s should fire, strictly after now.
// ok is false when the schedule has no future occurrence (a once schedule
// whose instant is not after now) or is malformed.
//
// Time-of-day kinds are evaluated in now's location.
func NextFire(s Schedule, now time.Time) (at time.Time, ok bool) {
	switch a := s.Anchor.(type) {
	case Seconds:
		if s.Kind != KindCountdown || a <= 0 || int64(a) > MaxSeconds {
			return time.Time{}, false
		}
		// Every arm restarts the full countdown.
		return now.Add(a.Duration()), true

	case Absolute:
		if s.Kind != KindOnce {
			return time.Time{}, false
		}
		if a.At.After(now) {
			return a.At, true
		}
		return time.Time{}, false

	case TimeOfDay:
		match := dayMatcher(s)
		if match == nil {
			return time.Time{}, false
		}
		return nextTimeOfDay(a, now, match)
	}
	return time.Time{}, false
}

// NextFireDelay is NextFire expressed as a delay from now.
func NextFireDelay(s Schedule, now time.Time) (time.Duration, bool) {
	at, ok := NextFire(s, now)
	if !ok {
		return 0, false
	}
	return at.Sub(now), true
}

// dayMatcher returns the day filter for a time-of-day kind.
func dayMatcher(s Schedule) func(Day) bool {
	switch s.Kind {
	case KindDaily:
		return func(Day) bool { return true }
	case KindWeekdays:
		return func(d Day) bool { return !d.Weekend() }
	case KindWeekends:
		return Day.Weekend
	case KindWeekly:
		if len(s.Days) == 0 {
			return nil
		}
		var set [7]bool
		for _, d := range s.Days {
			if d.Valid() {
				set[d] = true
			}
		}
		return func(d Day) bool { return set[d] }
	}
	return nil
}

// nextTimeOfDay walks forward day by day from today. Today qualifies only if
// its anchor instant is strictly after now; a time at exactly now counts as
// passed. Eight candidates cover a weekly schedule whose only day is today.
//
// Resulting offsets:
//   - weekdays: Friday past anchor => Monday (+3); Saturday => +2; Sunday => +1
//   - weekends: weekday => next Saturday; Saturday past => Sunday; Sunday past => +6
//   - weekly: next listed day, wrapping to next week
func nextTimeOfDay(tod TimeOfDay, now time.Time, match func(Day) bool) (time.Time, bool) {
	loc := now.Location()
	for offset := 0; offset <= 7; offset++ {
		at := tod.On(now, offset, loc)
		if !match(DayOf(at)) {
			continue
		}
		if at.After(now) {
			return at, true
		}
	}
	return time.Time{}, false
}
