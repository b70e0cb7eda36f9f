package storage

import (
	"context"
	"errors"
	"time"

	"keylock/internal/schedule"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path, written via temp file + rename
//   - "sqlite": SQLite database file at Path
//   - "memory": nothing touches disk
//
// If Driver is "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// ReadOnly skips the <Path>.lock writer lock and makes Save fail with
	// ErrReadOnly. Used to inspect a store a running daemon owns.
	ReadOnly bool

	// Location is the zone once anchors are written and read in.
	// nil means time.Local.
	Location *time.Location
}

// Store is the persistence boundary used by the scheduler.
type Store interface {
	// Load returns every well-formed schedule, sorted by id.
	Load(ctx context.Context) ([]schedule.Schedule, error)
	// Save replaces the persisted table with ss.
	Save(ctx context.Context, ss []schedule.Schedule) error
	Close() error
}
