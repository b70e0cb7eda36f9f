package scheduler

import (
	"context"
	"fmt"
	"time"

	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

// armLocked cancels e's lock timer and, if e is enabled, schedules the next
// fire. A schedule with no future occurrence is disabled; the return value
// reports that so the caller can persist.
//
// The unlock timer is left alone: a recurring schedule re-arms right after
// arming its auto-unlock.
func (m *Manager) armLocked(e *entry) (disabled bool) {
	return m.armAfterLocked(e, time.Time{})
}

// armAfterLocked is armLocked with the next occurrence searched from the
// later of now and floor. A timer that fires slightly early passes its own
// instant as floor so the same occurrence is not armed twice.
func (m *Manager) armAfterLocked(e *entry, floor time.Time) (disabled bool) {
	m.cancelLockLocked(e)
	if !e.s.Enabled || !m.running {
		return false
	}
	now := m.now()
	from := now
	if floor.After(now) {
		from = floor.In(now.Location())
	}
	at, ok := schedule.NextFire(e.s, from)
	if !ok {
		e.s.Enabled = false
		m.log.Info("schedule has no future occurrence; disabled",
			logx.String("id", e.s.ID), logx.String("name", e.s.Name), logx.String("kind", string(e.s.Kind)))
		d := eventFor(e.s)
		d.Reason = "expired"
		m.publish(EventRetired, d)
		return true
	}

	m.seq++
	seq, id := m.seq, e.s.ID
	e.lockSeq = seq
	e.next = at
	e.lock = m.clock.AfterFunc(at.Sub(now), func() { m.fire(id, seq) })

	fields := []logx.Field{
		logx.String("id", id),
		logx.String("name", e.s.Name),
		logx.Time("at", at),
		logx.Duration("in", at.Sub(now)),
	}
	if m.log.Enabled(logx.LevelDebug) {
		if next := schedule.Preview(e.s, now, 3); len(next) > 1 {
			fields = append(fields, logx.String("upcoming", schedule.FormatPreview(next)))
		}
	}
	m.log.Debug("schedule armed", fields...)

	d := eventFor(e.s)
	d.At = at
	m.publish(EventArmed, d)
	return false
}

func (m *Manager) cancelLockLocked(e *entry) {
	if e.lock != nil {
		_ = e.lock.Stop()
	}
	e.lock = nil
	e.lockSeq = 0
	e.next = time.Time{}
}

func (m *Manager) cancelUnlockLocked(e *entry) {
	if e.unlock != nil {
		_ = e.unlock.Stop()
	}
	e.unlock = nil
	e.unlockSeq = 0
	e.unlockAt = time.Time{}
}

func (m *Manager) cancelAllLocked(e *entry) {
	m.cancelLockLocked(e)
	m.cancelUnlockLocked(e)
}

// fire handles an elapsed lock timer. The callback is discarded unless seq
// still identifies e's current arm; Lock runs with the mutex released.
func (m *Manager) fire(id string, seq uint64) {
	m.mu.Lock()
	e, ok := m.table[id]
	if !m.running || !ok || e.lockSeq != seq || !e.s.Enabled {
		m.mu.Unlock()
		return
	}
	wg := m.inflight
	wg.Add(1)
	defer wg.Done()

	firedAt := e.next
	e.lock = nil
	e.next = time.Time{}
	s := e.s.Clone()
	timeout := m.cfg.callbackTimeout()
	m.updateArmedLocked()
	m.mu.Unlock()

	m.log.Info("schedule fired",
		logx.String("id", s.ID), logx.String("name", s.Name), logx.String("action", string(s.Action)))
	m.metrics.fired(string(s.Kind))

	err := m.invoke("lock", timeout, func(ctx context.Context) error {
		return m.locker.Lock(ctx, s.Action)
	})
	fd := eventFor(s)
	if err != nil {
		// Keep going: the unlock and the next cycle must still be armed.
		m.log.Error("lock callback failed", logx.String("id", s.ID), logx.Err(err))
		fd.Error = err.Error()
	}
	m.publish(EventFired, fd)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.log.Warn("scheduler stopped during lock callback; auto-unlock not armed", logx.String("id", s.ID))
		return
	}

	cur, ok := m.table[id]
	if s.Duration > 0 {
		if ok {
			m.armUnlockLocked(cur, s.Duration)
		} else {
			m.armDetachedLocked(s)
		}
	}
	if !ok || cur.lockSeq != seq {
		// Removed or replaced while Lock ran; the replacement already armed itself.
		return
	}
	cur.lockSeq = 0

	if s.Kind.OneShot() {
		cur.s.Enabled = false
		m.saveLocked(context.Background())
		d := eventFor(cur.s)
		d.Reason = "fired"
		m.publish(EventRetired, d)
		m.log.Info("one-shot schedule retired", logx.String("id", s.ID))
		return
	}
	if m.armAfterLocked(cur, firedAt) {
		m.saveLocked(context.Background())
	}
	m.updateArmedLocked()
}

// armUnlockLocked replaces e's pending auto-unlock with one due after d.
func (m *Manager) armUnlockLocked(e *entry, d time.Duration) {
	m.cancelUnlockLocked(e)
	m.seq++
	seq, id := m.seq, e.s.ID
	e.unlockSeq = seq
	e.unlockAt = m.now().Add(d)
	e.unlock = m.clock.AfterFunc(d, func() { m.fireUnlock(id, seq) })
	m.log.Info("auto-unlock armed", logx.String("id", id), logx.Duration("in", d))
}

func (m *Manager) fireUnlock(id string, seq uint64) {
	m.mu.Lock()
	e, ok := m.table[id]
	if !m.running || !ok || e.unlockSeq != seq {
		m.mu.Unlock()
		return
	}
	wg := m.inflight
	wg.Add(1)
	defer wg.Done()
	e.unlock = nil
	e.unlockSeq = 0
	e.unlockAt = time.Time{}
	s := e.s.Clone()
	timeout := m.cfg.callbackTimeout()
	m.mu.Unlock()

	m.runUnlock(s.ID, eventFor(s), timeout)
}

// armDetachedLocked keeps the auto-unlock of a schedule that was removed
// while its lock callback ran, so the device is not left locked.
func (m *Manager) armDetachedLocked(s schedule.Schedule) {
	m.seq++
	seq := m.seq
	m.detached[seq] = &detachedUnlock{
		id: s.ID,
		at: m.now().Add(s.Duration),
		t:  m.clock.AfterFunc(s.Duration, func() { m.fireDetached(seq) }),
	}
	m.log.Info("auto-unlock armed for removed schedule", logx.String("id", s.ID), logx.Duration("in", s.Duration))
}

func (m *Manager) fireDetached(seq uint64) {
	m.mu.Lock()
	d, ok := m.detached[seq]
	if !m.running || !ok {
		m.mu.Unlock()
		return
	}
	delete(m.detached, seq)
	wg := m.inflight
	wg.Add(1)
	defer wg.Done()
	timeout := m.cfg.callbackTimeout()
	m.mu.Unlock()

	m.runUnlock(d.id, EventData{ID: d.id, Reason: "removed"}, timeout)
}

func (m *Manager) runUnlock(id string, ev EventData, timeout time.Duration) {
	err := m.invoke("unlock", timeout, m.locker.Unlock)
	if err != nil {
		m.log.Error("unlock callback failed", logx.String("id", id), logx.Err(err))
		ev.Error = err.Error()
	} else {
		m.log.Info("auto-unlock executed", logx.String("id", id))
	}
	m.metrics.unlocked()
	m.publish(EventUnlocked, ev)
}

// invoke runs a Locker callback, turning errors and panics into ErrCallback.
func (m *Manager) invoke(name string, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panic: %v", schedule.ErrCallback, name, r)
		}
		if err != nil {
			m.metrics.callbackFailed(name)
		}
	}()
	if cerr := fn(ctx); cerr != nil {
		return fmt.Errorf("%w: %s: %w", schedule.ErrCallback, name, cerr)
	}
	return nil
}

// rearmWallClockLocked re-arms every schedule anchored on the wall clock.
// Countdowns are relative to their arm time and keep their timers.
func (m *Manager) rearmWallClockLocked(ctx context.Context, reason string) {
	dirty := false
	n := 0
	for _, e := range m.sortedLocked() {
		if e.s.Kind == schedule.KindCountdown || !e.s.Enabled {
			continue
		}
		n++
		if m.armLocked(e) {
			dirty = true
		}
	}
	if dirty {
		m.saveLocked(ctx)
	}
	m.updateArmedLocked()
	m.log.Info("schedules re-armed", logx.String("reason", reason), logx.Int("count", n))
}
