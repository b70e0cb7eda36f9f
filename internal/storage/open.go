package storage

import (
	"errors"
	"strings"
	"time"

	logx "keylock/pkg/logx"
)

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driverName(driver)))

	switch driver {
	case "", "file", "json":
		return openGuarded(cfg, log, openFile)
	case "sqlite", "sqlite3":
		return openGuarded(cfg, log, openSQLite)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func driverName(d string) string {
	if d == "" {
		return "file"
	}
	return d
}

func warnSkipped(log logx.Logger, skipped []error) {
	for _, err := range skipped {
		log.Warn("skipping malformed schedule record", logx.Err(err))
	}
}
