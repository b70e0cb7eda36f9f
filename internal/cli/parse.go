package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"keylock/internal/schedule"
)

var dayNames = map[string]schedule.Day{
	"mon": schedule.Monday, "tue": schedule.Tuesday, "wed": schedule.Wednesday,
	"thu": schedule.Thursday, "fri": schedule.Friday, "sat": schedule.Saturday,
	"sun": schedule.Sunday,
}

// parseDays accepts comma-separated day names ("mon,thu", "monday") or
// Monday-based indexes ("0,3").
func parseDays(raw string) ([]schedule.Day, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []schedule.Day
	for _, part := range strings.Split(raw, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, schedule.Day(n))
			continue
		}
		if len(p) >= 3 {
			if d, ok := dayNames[p[:3]]; ok {
				out = append(out, d)
				continue
			}
		}
		return nil, fmt.Errorf("%w: unknown day %q", schedule.ErrInvalidSchedule, part)
	}
	return out, nil
}

// parseAt parses the anchor for kind. Countdowns also take Go durations
// ("90s", "5m") which are truncated to whole seconds.
func parseAt(kind schedule.Kind, raw string, loc *time.Location) (schedule.Anchor, error) {
	if kind == schedule.KindCountdown {
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return schedule.Seconds(d / time.Second), nil
		}
	}
	if kind.TimeOfDay() && strings.Count(raw, ":") == 1 {
		raw += ":00"
	}
	return schedule.ParseAnchor(kind, raw, loc)
}

// parseLockDuration accepts a Go duration or plain seconds. Empty means
// indefinite.
func parseLockDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", schedule.ErrInvalidSchedule, raw)
	}
	return d, nil
}
