package app

import (
	"strings"
	"time"

	"keylock/internal/config"
	"keylock/internal/device"
	"keylock/internal/observability/httpserver"
	"keylock/internal/scheduler"
	"keylock/internal/storage"
	logx "keylock/pkg/logx"
)

// The map* helpers translate validated config sections into component
// configs. Invalid durations never reach them; config.Validate rejects those.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	t := cfg.Scheduler.Timings()
	return scheduler.Config{
		Timezone:            strings.TrimSpace(cfg.Scheduler.Timezone),
		CallbackTimeout:     t.CallbackTimeout,
		ClockCheckInterval:  t.ClockCheckInterval,
		ClockDriftThreshold: t.ClockDriftThreshold,
	}
}

// mapStorageConfig returns the store config. Once anchors are stored in
// the scheduler timezone.
func mapStorageConfig(cfg *config.Config) storage.Config {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: cfg.Storage.BusyTimeoutOr(time.Second),
		Location:    loc,
	}
}

func mapDeviceConfig(cfg *config.Config) device.Config {
	return device.Config{
		LockCommand:         cfg.Device.LockCommand,
		UnlockCommand:       cfg.Device.UnlockCommand,
		CommandTimeout:      cfg.Device.CommandTimeoutOr(5 * time.Second),
		LockKeyboardOnStart: cfg.Device.LockKeyboardOnStart,
		LockMouseOnStart:    cfg.Device.LockMouseOnStart,
	}
}

func mapHTTPConfig(cfg *config.Config) httpserver.Config {
	h := cfg.HTTP
	t := h.Timeouts()
	return httpserver.Config{
		Enabled:              h.Enabled,
		Addr:                 strings.TrimSpace(h.Addr),
		Token:                strings.TrimSpace(h.Token),
		AllowInsecure:        h.AllowInsecure,
		Pprof:                h.Pprof,
		PprofPrefix:          h.PprofPrefix,
		ReadTimeout:          t.Read,
		WriteTimeout:         t.Write,
		IdleTimeout:          t.Idle,
		MutexProfileFraction: h.MutexProfileFraction,
		BlockProfileRate:     h.BlockProfileRate,
	}
}
