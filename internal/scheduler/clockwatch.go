package scheduler

import (
	"context"
	"time"

	logx "keylock/pkg/logx"
)

// watchClock compares wall-clock progress against the monotonic clock on
// every tick. Timers run on the monotonic clock, so after a suspend or a
// manual clock change the armed wall-clock instants are stale and get
// recomputed.
func (m *Manager) watchClock(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("clock watcher panic", logx.Any("panic", r))
		}
	}()

	t := time.NewTicker(interval)
	defer t.Stop()
	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.mu.Lock()
			threshold := m.cfg.driftThreshold()
			m.mu.Unlock()

			mono := now.Sub(prev)
			wall := now.Round(0).Sub(prev.Round(0))
			if drift, jumped := clockJump(mono, wall, threshold); jumped {
				m.log.Warn("wall clock jump detected", logx.Duration("drift", drift))
				m.metrics.clockJumped()
				m.mu.Lock()
				if m.running {
					m.rearmWallClockLocked(ctx, "clock jump")
				}
				m.mu.Unlock()
			}
			prev = now
		}
	}
}

// clockJump compares wall-clock and monotonic elapsed time over one tick.
func clockJump(mono, wall, threshold time.Duration) (time.Duration, bool) {
	drift := wall - mono
	if drift < 0 {
		return drift, -drift > threshold
	}
	return drift, drift > threshold
}
