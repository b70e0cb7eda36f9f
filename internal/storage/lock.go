package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

var (
	// ErrLocked means another process has the store open for writing.
	ErrLocked = errors.New("storage is locked by another keylock process")
	// ErrReadOnly is returned by Save on a store opened with ReadOnly.
	ErrReadOnly = errors.New("storage opened read-only")
)

type opener func(cfg Config, log logx.Logger) (Store, error)

// openGuarded opens a path-backed store. A writable store holds an
// exclusive lock on <path>.lock until Close; a read-only one takes no lock
// and rejects Save.
func openGuarded(cfg Config, log logx.Logger, open opener) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" || cfg.ReadOnly {
		st, err := open(cfg, log)
		if err != nil || !cfg.ReadOnly {
			return st, err
		}
		return readOnlyStore{st}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	release, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}
	st, err := open(cfg, log)
	if err != nil {
		_ = release()
		return nil, err
	}
	log.Debug("store locked", logx.String("lock", path+".lock"))
	return &lockedStore{Store: st, release: release}, nil
}

type lockedStore struct {
	Store
	release func() error
}

func (s *lockedStore) Close() error {
	return errors.Join(s.Store.Close(), s.release())
}

type readOnlyStore struct {
	Store
}

func (readOnlyStore) Save(context.Context, []schedule.Schedule) error {
	return ErrReadOnly
}

func lockHolder(lockPath string) string {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func lockedError(lockPath string) error {
	if pid := lockHolder(lockPath); pid != "" {
		return fmt.Errorf("%w: %s (pid %s)", ErrLocked, lockPath, pid)
	}
	return fmt.Errorf("%w: %s", ErrLocked, lockPath)
}
