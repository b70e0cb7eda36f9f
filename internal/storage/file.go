package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

// fileStore keeps the table in one JSON object keyed by schedule id:
//
//	{"<id>": {"id": ..., "time_type": ..., "start_time": ..., ...}}
//
// Saves write <path>.tmp and rename it over <path>.
type fileStore struct {
	log  logx.Logger
	cfg  Config
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, cfg: cfg, path: path}, nil
}

func (s *fileStore) Load(ctx context.Context) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", schedule.ErrPersistence, s.path, err)
	}
	out, skipped, err := schedule.UnmarshalTable(b, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	warnSkipped(s.log, skipped)
	return out, nil
}

func (s *fileStore) Save(ctx context.Context, ss []schedule.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	local := make([]schedule.Schedule, 0, len(ss))
	for _, sc := range ss {
		local = append(local, sc.In(s.cfg.Location))
	}
	b, err := schedule.MarshalTable(local)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, b); err != nil {
		return fmt.Errorf("%w: write %s: %v", schedule.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *fileStore) Close() error { return nil }

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
