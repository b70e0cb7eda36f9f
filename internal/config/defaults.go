package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	DefaultStoragePath = "keylock_schedules.json"
	DefaultHTTPAddr    = "127.0.0.1:9464"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Scheduler: SchedulerConfig{
			CallbackTimeout:     "10s",
			ClockCheckInterval:  "30s",
			ClockDriftThreshold: "2s",
		},
		Storage: StorageConfig{Driver: "file", Path: DefaultStoragePath},
	}
}

// applyDefaults fills the fields whose zero value is not usable.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "file"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" && cfg.Storage.Driver != "none" && cfg.Storage.Driver != "memory" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Scheduler.ClockCheckInterval == "" {
		cfg.Scheduler.ClockCheckInterval = "30s"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
}

// Validate rejects configurations the daemon cannot apply.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	durations := map[string]string{
		"scheduler.callback_timeout":      cfg.Scheduler.CallbackTimeout,
		"scheduler.clock_check_interval":  cfg.Scheduler.ClockCheckInterval,
		"scheduler.clock_drift_threshold": cfg.Scheduler.ClockDriftThreshold,
		"storage.busy_timeout":            cfg.Storage.BusyTimeout,
		"device.command_timeout":          cfg.Device.CommandTimeout,
		"http.read_timeout":               cfg.HTTP.ReadTimeout,
		"http.write_timeout":              cfg.HTTP.WriteTimeout,
		"http.idle_timeout":               cfg.HTTP.IdleTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3", "memory", "mem", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	for _, cmd := range [][]string{cfg.Device.LockCommand, cfg.Device.UnlockCommand} {
		if len(cmd) > 0 && strings.TrimSpace(cmd[0]) == "" {
			errs = append(errs, errors.New("device: hook command has an empty program"))
		}
	}

	if cfg.HTTP.Enabled {
		if err := validateHTTPBind(cfg.HTTP); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateHTTPBind(h HTTPConfig) error {
	addr := strings.TrimSpace(h.Addr)
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("http.addr: %w", err)
	}
	if IsLoopbackHost(host) || strings.TrimSpace(h.Token) != "" || h.AllowInsecure {
		return nil
	}
	return fmt.Errorf("http.addr %q is not loopback: set http.token or http.allow_insecure", addr)
}

// IsLoopbackHost reports whether host only accepts local connections.
// An empty host binds every interface and is not loopback.
func IsLoopbackHost(host string) bool {
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
