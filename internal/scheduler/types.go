package scheduler

import (
	"context"
	"time"

	"keylock/internal/schedule"
)

// Config controls the manager. Zero values select defaults.
type Config struct {
	Timezone            string        // IANA TZ, e.g. "Europe/Berlin"; empty means Local
	CallbackTimeout     time.Duration // context deadline passed to Lock/Unlock
	ClockCheckInterval  time.Duration // 0 disables the clock-jump watcher
	ClockDriftThreshold time.Duration
}

const (
	defaultCallbackTimeout     = 10 * time.Second
	defaultClockDriftThreshold = 2 * time.Second
)

func (c Config) callbackTimeout() time.Duration {
	if c.CallbackTimeout <= 0 {
		return defaultCallbackTimeout
	}
	return c.CallbackTimeout
}

func (c Config) driftThreshold() time.Duration {
	if c.ClockDriftThreshold <= 0 {
		return defaultClockDriftThreshold
	}
	return c.ClockDriftThreshold
}

// Locker performs the actual lock and unlock. Implementations should return
// quickly; the context carries Config.CallbackTimeout.
type Locker interface {
	Lock(ctx context.Context, action schedule.Action) error
	Unlock(ctx context.Context) error
}

// LockerFuncs adapts plain functions to Locker. Nil funcs are no-ops.
type LockerFuncs struct {
	LockFunc   func(ctx context.Context, action schedule.Action) error
	UnlockFunc func(ctx context.Context) error
}

func (f LockerFuncs) Lock(ctx context.Context, action schedule.Action) error {
	if f.LockFunc == nil {
		return nil
	}
	return f.LockFunc(ctx, action)
}

func (f LockerFuncs) Unlock(ctx context.Context) error {
	if f.UnlockFunc == nil {
		return nil
	}
	return f.UnlockFunc(ctx)
}

// Event types published on the bus.
const (
	EventArmed    = "schedule.armed"
	EventFired    = "schedule.fired"
	EventRetired  = "schedule.retired"
	EventUnlocked = "schedule.unlocked"
	EventAdded    = "schedule.added"
	EventUpdated  = "schedule.updated"
	EventRemoved  = "schedule.removed"
)

// EventData is the payload of every schedule.* event.
type EventData struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Kind   schedule.Kind   `json:"kind,omitempty"`
	Action schedule.Action `json:"action,omitempty"`
	At     time.Time       `json:"at,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ScheduleInfo is a schedule plus its runtime timer state.
type ScheduleInfo struct {
	Schedule schedule.Schedule
	Armed    bool
	Next     time.Time // zero when not armed
	UnlockAt time.Time // zero when no auto-unlock is pending
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Now       time.Time
	Schedules []ScheduleInfo
	// Detached counts auto-unlocks still pending for schedules removed
	// while their lock callback was running.
	Detached int
}
