package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the 6-field (with seconds) expressions produced by CronSpec.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec renders the cron expression equivalent to a time-of-day schedule.
// ok is false for once and countdown schedules, which have no cron form.
func CronSpec(s Schedule) (string, bool) {
	tod, isTOD := s.Anchor.(TimeOfDay)
	if !isTOD || !s.Kind.TimeOfDay() {
		return "", false
	}
	var dow string
	switch s.Kind {
	case KindDaily:
		dow = "*"
	case KindWeekdays:
		dow = "1-5"
	case KindWeekends:
		dow = "0,6"
	case KindWeekly:
		if len(s.Days) == 0 {
			return "", false
		}
		parts := make([]string, 0, len(s.Days))
		for _, d := range s.Normalize().Days {
			parts = append(parts, strconv.Itoa(int(d.Weekday())))
		}
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d %d * * %s", tod.Second, tod.Minute, tod.Hour, dow), true
}

// Preview returns up to n upcoming fire times after now.
//
// Time-of-day kinds go through robfig/cron so previews double as a cross-check
// of NextFire; once and countdown schedules yield at most one entry.
func Preview(s Schedule, now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	spec, ok := CronSpec(s)
	if !ok {
		if at, ok := NextFire(s, now); ok {
			return []time.Time{at}
		}
		return nil
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := now
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// FormatPreview joins times in the persisted date-time layout.
func FormatPreview(ts []time.Time) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format(DateTimeLayout))
	}
	return b.String()
}
