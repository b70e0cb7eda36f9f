package config

import (
	"slices"
	"strings"

	logx "keylock/pkg/logx"
)

// Restart-only sections. Their changes are reported but not applied live.
const SectionStorage = "storage"

// SummarizeConfigChange returns the changed section names and safe
// structured attrs for logging. The HTTP token is never included; only
// whether one is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if trimmed(oldCfg.Scheduler) != trimmed(newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		tz := strings.TrimSpace(newCfg.Scheduler.Timezone)
		if tz == "" {
			tz = "Local"
		}
		t := newCfg.Scheduler.Timings()
		attrs = append(attrs,
			logx.String("scheduler.timezone", tz),
			logx.Duration("scheduler.callback_timeout", t.CallbackTimeout),
			logx.Duration("scheduler.clock_check_interval", t.ClockCheckInterval),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, SectionStorage)
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
			logx.Bool("storage.restart_required", true),
		)
	}

	if !deviceEqual(oldCfg.Device, newCfg.Device) {
		changed = append(changed, "device")
		attrs = append(attrs,
			logx.Bool("device.lock_hook", len(newCfg.Device.LockCommand) > 0),
			logx.Bool("device.unlock_hook", len(newCfg.Device.UnlockCommand) > 0),
			logx.Duration("device.command_timeout", newCfg.Device.CommandTimeoutOr(0)),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.token_set", strings.TrimSpace(newCfg.HTTP.Token) != ""),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}

	if len(changed) > 0 {
		attrs = append(attrs, logx.Strings("changed", changed))
	}
	return changed, attrs
}

func trimmed(s SchedulerConfig) SchedulerConfig {
	s.Timezone = strings.TrimSpace(s.Timezone)
	s.CallbackTimeout = strings.TrimSpace(s.CallbackTimeout)
	s.ClockCheckInterval = strings.TrimSpace(s.ClockCheckInterval)
	s.ClockDriftThreshold = strings.TrimSpace(s.ClockDriftThreshold)
	return s
}

func deviceEqual(a, b DeviceConfig) bool {
	return slices.Equal(a.LockCommand, b.LockCommand) &&
		slices.Equal(a.UnlockCommand, b.UnlockCommand) &&
		strings.TrimSpace(a.CommandTimeout) == strings.TrimSpace(b.CommandTimeout) &&
		a.LockKeyboardOnStart == b.LockKeyboardOnStart &&
		a.LockMouseOnStart == b.LockMouseOnStart
}
