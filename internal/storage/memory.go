package storage

import (
	"context"
	"sort"
	"sync"

	"keylock/internal/schedule"
)

// Memory is an in-process Store. Saves counts successful Save calls.
type Memory struct {
	mu    sync.Mutex
	table []schedule.Schedule
	saves int
	err   error
}

func NewMemory(seed ...schedule.Schedule) *Memory {
	m := &Memory{}
	m.table = cloneAll(seed)
	return m
}

func (m *Memory) Load(ctx context.Context) ([]schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := cloneAll(m.table)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Save(ctx context.Context, ss []schedule.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.table = cloneAll(ss)
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

// FailSaves makes every later Save return err (nil restores normal saves).
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneAll(ss []schedule.Schedule) []schedule.Schedule {
	if len(ss) == 0 {
		return nil
	}
	out := make([]schedule.Schedule, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Clone())
	}
	return out
}
