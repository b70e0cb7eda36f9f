package device

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"keylock/internal/eventbus"
	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeRunner) run(ctx context.Context, argv []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, argv)
	if f.err != nil {
		return []byte("permission denied\n"), f.err
	}
	return nil, nil
}

func TestLockTracksDevices(t *testing.T) {
	t.Parallel()
	c := New(Config{}, logx.Nop(), nil)
	ctx := context.Background()

	if err := c.Lock(ctx, schedule.ActionKeyboard); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	st := c.State()
	if !st.Keyboard || st.Mouse || st.Since.IsZero() {
		t.Fatalf("state = %+v, want keyboard only", st)
	}
	since := st.Since

	if err := c.Lock(ctx, schedule.ActionMouse); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	st = c.State()
	if !st.Keyboard || !st.Mouse {
		t.Fatalf("state = %+v, want both", st)
	}
	if !st.Since.Equal(since) {
		t.Fatal("Since moved while already locked")
	}

	if err := c.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if st := c.State(); st.Locked() {
		t.Fatalf("state = %+v after unlock", st)
	}
}

func TestLockRejectsUnknownAction(t *testing.T) {
	t.Parallel()
	c := New(Config{}, logx.Nop(), nil)
	if err := c.Lock(context.Background(), "screen"); !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("err = %v", err)
	}
}

func TestHookExpandsActionPlaceholder(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{}
	cfg := Config{
		LockCommand:    []string{"/usr/local/bin/input-ctl", "--lock={action}"},
		UnlockCommand:  []string{"/usr/local/bin/input-ctl", "--unlock", "{action}"},
		CommandTimeout: time.Second,
	}
	c := New(cfg, logx.Nop(), nil, WithRunner(r.run))
	ctx := context.Background()

	if err := c.Lock(ctx, schedule.ActionMouse); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := c.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	want := [][]string{
		{"/usr/local/bin/input-ctl", "--lock=mouse"},
		{"/usr/local/bin/input-ctl", "--unlock", "both"},
	}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v", r.calls)
	}
	for i := range want {
		if strings.Join(r.calls[i], " ") != strings.Join(want[i], " ") {
			t.Fatalf("call %d = %v, want %v", i, r.calls[i], want[i])
		}
	}
}

func TestHookFailureKeepsState(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{err: errors.New("exit status 1")}
	c := New(Config{LockCommand: []string{"lockctl", "{action}"}}, logx.Nop(), nil, WithRunner(r.run))

	err := c.Lock(context.Background(), schedule.ActionBoth)
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("err = %v, want hook output in error", err)
	}
	if c.State().Locked() {
		t.Fatal("state changed despite hook failure")
	}
}

func TestLockOnStart(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		kb, mouse bool
		want      State
	}{
		{name: "none", want: State{}},
		{name: "keyboard", kb: true, want: State{Keyboard: true}},
		{name: "mouse", mouse: true, want: State{Mouse: true}},
		{name: "both", kb: true, mouse: true, want: State{Keyboard: true, Mouse: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(Config{LockKeyboardOnStart: tt.kb, LockMouseOnStart: tt.mouse}, logx.Nop(), nil)
			if err := c.LockOnStart(context.Background()); err != nil {
				t.Fatalf("LockOnStart: %v", err)
			}
			st := c.State()
			if st.Keyboard != tt.want.Keyboard || st.Mouse != tt.want.Mouse {
				t.Fatalf("state = %+v, want %+v", st, tt.want)
			}
		})
	}
}

func TestEventsOnLockAndUnlock(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	c := New(Config{}, logx.Nop(), bus)
	ctx := context.Background()
	_ = c.Lock(ctx, schedule.ActionBoth)
	_ = c.Unlock(ctx)

	first, second := <-ch, <-ch
	if first.Type != EventLocked || second.Type != EventUnlocked {
		t.Fatalf("events = %s, %s", first.Type, second.Type)
	}
	if st, ok := first.Data.(State); !ok || !st.Keyboard || !st.Mouse {
		t.Fatalf("locked payload = %#v", first.Data)
	}
}
