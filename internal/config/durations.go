package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a non-negative duration string. Empty means 0.
// Errors are prefixed with the field path.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// durationOr returns def for empty, zero or invalid values. Validate has
// already reported invalid values by the time callers use it.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SchedulerTimings is the parsed form of SchedulerConfig durations.
type SchedulerTimings struct {
	CallbackTimeout     time.Duration
	ClockCheckInterval  time.Duration // 0 disables jump detection
	ClockDriftThreshold time.Duration
}

func (s SchedulerConfig) Timings() SchedulerTimings {
	t := SchedulerTimings{
		CallbackTimeout:     durationOr(s.CallbackTimeout, 10*time.Second),
		ClockDriftThreshold: durationOr(s.ClockDriftThreshold, 2*time.Second),
	}
	// An explicit "0s" turns the watcher off; only an empty value gets the default.
	if strings.TrimSpace(s.ClockCheckInterval) == "" {
		t.ClockCheckInterval = 30 * time.Second
	} else {
		t.ClockCheckInterval, _ = ParseDurationField("", s.ClockCheckInterval)
	}
	return t
}

func (s StorageConfig) BusyTimeoutOr(def time.Duration) time.Duration {
	return durationOr(s.BusyTimeout, def)
}

func (d DeviceConfig) CommandTimeoutOr(def time.Duration) time.Duration {
	return durationOr(d.CommandTimeout, def)
}

// HTTPTimeouts is the parsed form of HTTPConfig durations. A zero
// WriteTimeout means none.
type HTTPTimeouts struct {
	Read, Write, Idle time.Duration
}

func (h HTTPConfig) Timeouts() HTTPTimeouts {
	return HTTPTimeouts{
		Read:  durationOr(h.ReadTimeout, 10*time.Second),
		Write: durationOr(h.WriteTimeout, 0),
		Idle:  durationOr(h.IdleTimeout, 60*time.Second),
	}
}
