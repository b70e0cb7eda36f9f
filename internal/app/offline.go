package app

import (
	"context"
	"errors"
	"fmt"

	"keylock/internal/config"
	"keylock/internal/scheduler"
	"keylock/internal/storage"
	logx "keylock/pkg/logx"
)

// Offline is a stopped scheduler over the configured store, used by CLI
// commands to read and edit schedules without running the daemon.
//
// A writable Offline holds the store lock, so it cannot be opened while a
// daemon runs on the same store. Edits are saved immediately.
type Offline struct {
	Config  *config.Config
	Manager *scheduler.Manager
	store   storage.Store
}

// OpenOffline opens the store for editing.
func OpenOffline(ctx context.Context, cfgPath string, log logx.Logger) (*Offline, error) {
	return openOffline(ctx, cfgPath, log, false)
}

// OpenOfflineReadOnly opens the store without taking its lock. Mutations
// through Manager are not persisted.
func OpenOfflineReadOnly(ctx context.Context, cfgPath string, log logx.Logger) (*Offline, error) {
	return openOffline(ctx, cfgPath, log, true)
}

func openOffline(ctx context.Context, cfgPath string, log logx.Logger, readOnly bool) (*Offline, error) {
	cfg, err := config.NewConfigManager(cfgPath).LoadOrDefault()
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	scfg := mapStorageConfig(cfg)
	scfg.ReadOnly = readOnly
	store, err := storage.Open(scfg, log)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w; stop the keylock daemon before editing schedules", err)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	m := scheduler.New(mapSchedulerConfig(cfg), nil, store, log.With(logx.String("comp", "scheduler")), nil)
	if err := m.Load(ctx); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return &Offline{Config: cfg, Manager: m, store: store}, nil
}

func (o *Offline) Close() error {
	if o.store == nil {
		return nil
	}
	return o.store.Close()
}
