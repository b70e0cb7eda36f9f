package schedule

import (
	"fmt"
	"math"
	"time"
)

// Anchor is the kind-specific time reference of a schedule.
//
// It is a closed set: TimeOfDay, Absolute or Seconds.
type Anchor interface {
	anchor()
	String() string
}

// TimeOfDay anchors daily, weekdays, weekends and weekly schedules.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (TimeOfDay) anchor() {}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 &&
		t.Minute >= 0 && t.Minute <= 59 &&
		t.Second >= 0 && t.Second <= 59
}

// On returns the instant on the calendar day of day (in loc) at this time of day.
// dayOffset shifts the calendar day; time.Date normalizes across month ends and DST.
func (t TimeOfDay) On(day time.Time, dayOffset int, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d+dayOffset, t.Hour, t.Minute, t.Second, 0, loc)
}

// Clock returns the time of day of t.
func Clock(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// Absolute anchors a once schedule at a specific instant.
type Absolute struct {
	At time.Time
}

func (Absolute) anchor() {}

func (a Absolute) String() string { return a.At.Format(DateTimeLayout) }

// Seconds anchors a countdown schedule: fire N seconds after arming.
type Seconds int

// MaxSeconds is the largest second count a time.Duration can hold. Countdown
// anchors and durations above it are invalid.
const MaxSeconds = math.MaxInt64 / int64(time.Second)

func (Seconds) anchor() {}

func (s Seconds) String() string { return fmt.Sprintf("%ds", int(s)) }

func (s Seconds) Duration() time.Duration { return time.Duration(s) * time.Second }
