package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "keylock/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (r *recorder) send(s string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	return r.err == nil, r.err
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func TestNotifyStates(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	n := NewNotifier(logx.Nop())
	n.send = r.send

	n.Ready()
	n.Status("3 schedules armed")
	n.Reloading()
	n.Stopping()

	want := []string{"READY=1", "STATUS=3 schedules armed", "RELOADING=1", "STOPPING=1"}
	got := r.snapshot()
	if len(got) != len(want) {
		t.Fatalf("states = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifyErrorIsNotSent(t *testing.T) {
	t.Parallel()
	n := NewNotifier(logx.Nop())
	n.send = (&recorder{err: errors.New("socket gone")}).send
	if n.Ready() {
		t.Fatal("Ready() = true on error")
	}
}

func TestWatchdogLoopPings(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	n := NewNotifier(logx.Nop())
	n.send = r.send

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.watchdogLoop(ctx, 5*time.Millisecond)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(r.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	for _, s := range r.snapshot() {
		if s != "WATCHDOG=1" {
			t.Fatalf("unexpected state %q", s)
		}
	}
	if len(r.snapshot()) < 2 {
		t.Fatal("watchdog did not ping")
	}
}

func TestOutsideSystemdIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if NewNotifier(logx.Nop()).Ready() {
		t.Fatal("Ready() reported sent without NOTIFY_SOCKET")
	}
}
