package scheduler

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Running:   m.running,
		Timezone:  m.loc.String(),
		Now:       m.now(),
		Schedules: make([]ScheduleInfo, 0, len(m.table)),
		Detached:  len(m.detached),
	}
	for _, e := range m.sortedLocked() {
		snap.Schedules = append(snap.Schedules, ScheduleInfo{
			Schedule: e.s.Clone(),
			Armed:    e.lock != nil,
			Next:     e.next,
			UnlockAt: e.unlockAt,
		})
	}
	return snap
}
