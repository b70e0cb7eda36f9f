package app

import (
	"context"
	"slices"

	"keylock/internal/config"
	logx "keylock/pkg/logx"
)

// reloadLoop applies published configs. Storage changes need a restart;
// everything else is applied live.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			newCfg = coalesce(sub, newCfg)
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// coalesce drains queued updates and returns the newest.
func coalesce(sub <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok || newer == nil {
				return cur
			}
			cur = newer
		default:
			return cur
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.notify.Reloading()
	defer a.notify.Ready()

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLoggingConfig(next))
		case "scheduler":
			a.sched.Apply(mapSchedulerConfig(next))
		case "device":
			a.dev.Apply(mapDeviceConfig(next))
		case "http":
			a.http.Reconfigure(ctx, mapHTTPConfig(next))
		}
	}
	if slices.Contains(sections, config.SectionStorage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	a.log.Info("config reloaded", attrs...)
}
