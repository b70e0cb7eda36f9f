package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Schedule describes one lock rule: what to lock, when, and for how long.
//
// Duration == 0 means the lock is indefinite until something unlocks it.
// Days is only used by KindWeekly.
type Schedule struct {
	ID       string
	Name     string
	Action   Action
	Kind     Kind
	Anchor   Anchor
	Days     []Day
	Duration time.Duration
	Enabled  bool
}

// Validate checks the kind/anchor/days/duration invariants.
// All failures wrap ErrInvalidSchedule.
func (s Schedule) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return invalid("id required")
	}
	if !s.Action.Valid() {
		return invalid("unknown action %q", s.Action)
	}
	if !s.Kind.Valid() {
		return invalid("unknown kind %q", s.Kind)
	}
	if s.Anchor == nil {
		return invalid("%s schedule requires an anchor", s.Kind)
	}

	switch a := s.Anchor.(type) {
	case TimeOfDay:
		if !s.Kind.TimeOfDay() {
			return invalid("%s schedule cannot use a time-of-day anchor", s.Kind)
		}
		if !a.Valid() {
			return invalid("time of day %s out of range", a)
		}
	case Absolute:
		if s.Kind != KindOnce {
			return invalid("%s schedule cannot use an absolute anchor", s.Kind)
		}
		if a.At.IsZero() {
			return invalid("once schedule requires a date-time")
		}
	case Seconds:
		if s.Kind != KindCountdown {
			return invalid("%s schedule cannot use a seconds anchor", s.Kind)
		}
		if a <= 0 {
			return invalid("countdown seconds must be > 0, got %d", int(a))
		}
		if int64(a) > MaxSeconds {
			return invalid("countdown seconds %d exceed %d", int64(a), MaxSeconds)
		}
	default:
		return invalid("unsupported anchor %T", s.Anchor)
	}

	if s.Kind == KindWeekly {
		if len(s.Days) == 0 {
			return invalid("weekly schedule requires at least one day")
		}
		for _, d := range s.Days {
			if !d.Valid() {
				return invalid("day %d out of range 0..6", int(d))
			}
		}
	} else if len(s.Days) > 0 {
		return invalid("days are only allowed for weekly schedules")
	}

	if s.Duration < 0 {
		return invalid("duration must be > 0")
	}
	if s.Duration%time.Second != 0 {
		return invalid("duration must be whole seconds, got %s", s.Duration)
	}
	return nil
}

// Normalize returns a copy with Days sorted and de-duplicated.
func (s Schedule) Normalize() Schedule {
	cp := s.Clone()
	if len(cp.Days) > 0 {
		slices.Sort(cp.Days)
		cp.Days = slices.Compact(cp.Days)
	}
	return cp
}

// Clone returns a copy that does not share the Days backing array.
func (s Schedule) Clone() Schedule {
	cp := s
	if s.Days != nil {
		cp.Days = append([]Day(nil), s.Days...)
	}
	return cp
}

// Describe renders a short human-readable summary, e.g. "weekly Mon,Thu 09:00:00".
func (s Schedule) Describe() string {
	var b strings.Builder
	b.WriteString(string(s.Kind))
	if s.Kind == KindWeekly && len(s.Days) > 0 {
		b.WriteString(" ")
		for i, d := range s.Days {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(d.String()[:3])
		}
	}
	if s.Anchor != nil {
		b.WriteString(" ")
		b.WriteString(s.Anchor.String())
	}
	if s.Duration > 0 {
		b.WriteString(" for ")
		b.WriteString(s.Duration.String())
	}
	return b.String()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}

// In returns a copy whose absolute anchor is expressed in loc.
// Persisted once anchors carry no offset, so the codec writes them in the
// location it will read them back in.
func (s Schedule) In(loc *time.Location) Schedule {
	cp := s.Clone()
	if a, ok := cp.Anchor.(Absolute); ok && loc != nil {
		cp.Anchor = Absolute{At: a.At.In(loc)}
	}
	return cp
}
