package config

// Config is the daemon configuration file (JSON, or YAML by extension).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Device    DeviceConfig    `json:"device"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls timer arming.
//
// Defaults (when fields are omitted/zero):
//   - timezone: Local
//   - callback_timeout: "10s"
//   - clock_check_interval: "30s" ("0s" disables jump detection)
//   - clock_drift_threshold: "2s"
type SchedulerConfig struct {
	Timezone            string `json:"timezone,omitempty"`
	CallbackTimeout     string `json:"callback_timeout,omitempty"`
	ClockCheckInterval  string `json:"clock_check_interval,omitempty"`
	ClockDriftThreshold string `json:"clock_drift_threshold,omitempty"`
}

// StorageConfig controls where schedules are persisted.
// Changes take effect on restart.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./keylock_schedules.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DeviceConfig controls the lock collaborator.
//
// Hook commands are argv vectors; "{action}" is replaced by
// keyboard, mouse or both.
type DeviceConfig struct {
	LockCommand    []string `json:"lock_command,omitempty"`
	UnlockCommand  []string `json:"unlock_command,omitempty"`
	CommandTimeout string   `json:"command_timeout,omitempty"`

	LockKeyboardOnStart bool `json:"onstart_lock_keyboard,omitempty"`
	LockMouseOnStart    bool `json:"onstart_lock_mouse,omitempty"`
}

// HTTPConfig controls the optional status server (/healthz, /metrics,
// /schedules and, when enabled, pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:9464").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9464"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	Pprof       bool   `json:"pprof,omitempty"`
	PprofPrefix string `json:"pprof_prefix,omitempty"` // default: "/debug/pprof/"

	// WriteTimeout defaults to 0 (disabled) so pprof /profile works.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
