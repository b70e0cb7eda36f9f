// Package device tracks keyboard and mouse lock state for the daemon.
//
// Real input interception is delegated to optional hook commands; without
// hooks the Controller only records state and publishes events.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"keylock/internal/eventbus"
	"keylock/internal/schedule"
	logx "keylock/pkg/logx"
)

const (
	EventLocked   = "device.locked"
	EventUnlocked = "device.unlocked"
)

// ActionPlaceholder is replaced in hook arguments by the lock action.
const ActionPlaceholder = "{action}"

type Config struct {
	// LockCommand and UnlockCommand are argv vectors; empty disables the hook.
	LockCommand    []string
	UnlockCommand  []string
	CommandTimeout time.Duration

	LockKeyboardOnStart bool
	LockMouseOnStart    bool
}

type State struct {
	Keyboard bool      `json:"keyboard"`
	Mouse    bool      `json:"mouse"`
	Since    time.Time `json:"since,omitempty"`
}

// Locked reports whether any device is locked.
func (s State) Locked() bool { return s.Keyboard || s.Mouse }

// Runner executes a hook command and returns its combined output.
type Runner func(ctx context.Context, argv []string) ([]byte, error)

type Controller struct {
	mu    sync.Mutex
	log   logx.Logger
	cfg   Config
	bus   eventbus.Bus
	run   Runner
	state State
	now   func() time.Time
}

type Option func(*Controller)

// WithRunner replaces the os/exec hook runner.
func WithRunner(r Runner) Option {
	return func(c *Controller) {
		if r != nil {
			c.run = r
		}
	}
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{cfg: cfg, log: log, bus: bus, run: execRunner, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Apply(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lock locks the devices covered by action. Already locked devices stay
// locked; the hook runs on every call. State only changes when the hook
// succeeds.
func (c *Controller) Lock(ctx context.Context, action schedule.Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", schedule.ErrInvalidSchedule, action)
	}
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	if err := c.runHook(ctx, cfg, cfg.LockCommand, string(action)); err != nil {
		return fmt.Errorf("lock hook: %w", err)
	}

	c.mu.Lock()
	was := c.state.Locked()
	if action.Keyboard() {
		c.state.Keyboard = true
	}
	if action.Mouse() {
		c.state.Mouse = true
	}
	if !was {
		c.state.Since = c.now()
	}
	st := c.state
	c.mu.Unlock()

	c.log.Info("devices locked", logx.String("action", string(action)), logx.Bool("keyboard", st.Keyboard), logx.Bool("mouse", st.Mouse))
	c.publish(EventLocked, st)
	return nil
}

// Unlock releases both devices.
func (c *Controller) Unlock(ctx context.Context) error {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	if err := c.runHook(ctx, cfg, cfg.UnlockCommand, string(schedule.ActionBoth)); err != nil {
		return fmt.Errorf("unlock hook: %w", err)
	}

	c.mu.Lock()
	held := time.Duration(0)
	if c.state.Locked() {
		held = c.now().Sub(c.state.Since)
	}
	c.state = State{}
	c.mu.Unlock()

	c.log.Info("devices unlocked", logx.Duration("held", held))
	c.publish(EventUnlocked, State{})
	return nil
}

// LockOnStart applies the configured startup lock, if any.
func (c *Controller) LockOnStart(ctx context.Context) error {
	c.mu.Lock()
	kb, mouse := c.cfg.LockKeyboardOnStart, c.cfg.LockMouseOnStart
	c.mu.Unlock()

	var action schedule.Action
	switch {
	case kb && mouse:
		action = schedule.ActionBoth
	case kb:
		action = schedule.ActionKeyboard
	case mouse:
		action = schedule.ActionMouse
	default:
		return nil
	}
	c.log.Info("locking on start", logx.String("action", string(action)))
	return c.Lock(ctx, action)
}

func (c *Controller) runHook(ctx context.Context, cfg Config, tmpl []string, action string) error {
	if len(tmpl) == 0 {
		return nil
	}
	if cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CommandTimeout)
		defer cancel()
	}
	argv := expand(tmpl, action)
	start := time.Now()
	out, err := c.run(ctx, argv)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	c.log.Debug("hook finished", logx.String("cmd", argv[0]), logx.Duration("took", time.Since(start)))
	return nil
}

func (c *Controller) publish(typ string, st State) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Data: st})
}

func expand(tmpl []string, action string) []string {
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = strings.ReplaceAll(a, ActionPlaceholder, action)
	}
	return out
}

func execRunner(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("empty command")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}
