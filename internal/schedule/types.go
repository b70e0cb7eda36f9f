package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Action selects which device(s) a lock applies to.
type Action string

const (
	ActionKeyboard Action = "keyboard"
	ActionMouse    Action = "mouse"
	ActionBoth     Action = "both"
)

func (a Action) Valid() bool {
	switch a {
	case ActionKeyboard, ActionMouse, ActionBoth:
		return true
	}
	return false
}

// Keyboard reports whether the action covers the keyboard.
func (a Action) Keyboard() bool { return a == ActionKeyboard || a == ActionBoth }

// Mouse reports whether the action covers the mouse.
func (a Action) Mouse() bool { return a == ActionMouse || a == ActionBoth }

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown action %q (use keyboard, mouse or both)", ErrInvalidSchedule, s)
	}
	return a, nil
}

// Kind is the recurrence kind of a schedule.
type Kind string

const (
	KindOnce      Kind = "once"
	KindDaily     Kind = "daily"
	KindWeekdays  Kind = "weekdays"
	KindWeekends  Kind = "weekends"
	KindWeekly    Kind = "weekly"
	KindCountdown Kind = "countdown"
)

var kinds = []Kind{KindOnce, KindDaily, KindWeekdays, KindWeekends, KindWeekly, KindCountdown}

// Kinds returns every supported recurrence kind.
func Kinds() []Kind { return append([]Kind(nil), kinds...) }

func (k Kind) Valid() bool {
	for _, v := range kinds {
		if k == v {
			return true
		}
	}
	return false
}

// OneShot reports whether the schedule retires after its first fire.
func (k Kind) OneShot() bool { return k == KindOnce || k == KindCountdown }

// TimeOfDay reports whether the kind is anchored on a wall-clock time of day.
func (k Kind) TimeOfDay() bool {
	switch k {
	case KindDaily, KindWeekdays, KindWeekends, KindWeekly:
		return true
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s)
	}
	return k, nil
}

// Day is a weekday index where Monday is 0 and Sunday is 6.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DayOf returns the Monday-based day index of t.
func DayOf(t time.Time) Day {
	return Day((int(t.Weekday()) + 6) % 7)
}

// Weekday converts d to the time package's Sunday-based weekday.
func (d Day) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

func (d Day) Valid() bool { return d >= Monday && d <= Sunday }

func (d Day) Weekend() bool { return d == Saturday || d == Sunday }

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return d.Weekday().String()
}
