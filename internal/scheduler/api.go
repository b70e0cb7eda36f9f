package scheduler

import (
	"context"
	"fmt"

	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

// AddSchedule inserts s, arms it when the manager is running and s is
// enabled, and persists the table. An empty ID is replaced by NewID.
func (m *Manager) AddSchedule(ctx context.Context, s schedule.Schedule) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return "", err
	}

	if s.ID == "" {
		s.ID = m.newIDLocked()
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return "", err
	}
	if _, exists := m.table[s.ID]; exists {
		return "", fmt.Errorf("%w: %s", schedule.ErrDuplicateID, s.ID)
	}

	e := &entry{s: s}
	m.table[s.ID] = e
	m.armLocked(e)
	m.updateArmedLocked()
	m.saveLocked(ctx)

	m.log.Info("schedule added", logx.String("id", s.ID), logx.String("name", s.Name), logx.String("rule", s.Describe()))
	m.publish(EventAdded, eventFor(e.s))
	return s.ID, nil
}

// UpdateSchedule replaces the schedule with s.ID, cancelling its lock and
// unlock timers and re-arming it if enabled.
func (m *Manager) UpdateSchedule(ctx context.Context, s schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	return m.updateLocked(ctx, s)
}

func (m *Manager) updateLocked(ctx context.Context, s schedule.Schedule) error {
	e, ok := m.table[s.ID]
	if !ok {
		return fmt.Errorf("%w: %s", schedule.ErrNotFound, s.ID)
	}
	m.cancelAllLocked(e)
	e.s = s
	m.armLocked(e)
	m.updateArmedLocked()
	m.saveLocked(ctx)

	m.log.Info("schedule updated", logx.String("id", s.ID), logx.String("rule", s.Describe()), logx.Bool("enabled", e.s.Enabled))
	m.publish(EventUpdated, eventFor(e.s))
	return nil
}

// RemoveSchedule cancels the schedule's timers and deletes it.
func (m *Manager) RemoveSchedule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	e, ok := m.table[id]
	if !ok {
		return fmt.Errorf("%w: %s", schedule.ErrNotFound, id)
	}
	m.cancelAllLocked(e)
	delete(m.table, id)
	m.updateArmedLocked()
	m.saveLocked(ctx)

	m.log.Info("schedule removed", logx.String("id", id))
	m.publish(EventRemoved, eventFor(e.s))
	return nil
}

// SetEnabled toggles a schedule through the update path.
func (m *Manager) SetEnabled(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	e, ok := m.table[id]
	if !ok {
		return fmt.Errorf("%w: %s", schedule.ErrNotFound, id)
	}
	s := e.s.Clone()
	s.Enabled = enabled
	return m.updateLocked(ctx, s)
}

// GetSchedule returns a copy of the schedule with id.
func (m *Manager) GetSchedule(id string) (schedule.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.table[id]
	if !ok {
		return schedule.Schedule{}, false
	}
	return e.s.Clone(), true
}

// ListSchedules returns copies of every schedule, sorted by id.
func (m *Manager) ListSchedules() []schedule.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Manager) newIDLocked() string {
	for {
		id := schedule.NewID()
		if _, taken := m.table[id]; !taken {
			return id
		}
	}
}
