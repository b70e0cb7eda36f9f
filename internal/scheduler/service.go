package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"keylock/internal/eventbus"
	"keylock/internal/schedule"
	"keylock/internal/storage"
	logx "keylock/pkg/logx"
)

// ErrRunning is returned by Load while the manager is started.
var ErrRunning = errors.New("scheduler is running")

// entry is one table row plus its transient timer handles.
type entry struct {
	s schedule.Schedule

	lock    Timer
	lockSeq uint64 // 0 when no lock timer is armed or a fire is being handled
	next    time.Time

	unlock    Timer
	unlockSeq uint64
	unlockAt  time.Time
}

// detachedUnlock is an auto-unlock whose schedule was removed while its
// lock callback was running.
type detachedUnlock struct {
	t  Timer
	id string
	at time.Time
}

type Manager struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	loc     *time.Location
	bus     eventbus.Bus
	store   storage.Store
	locker  Locker
	clock   Clock
	metrics *Metrics

	table    map[string]*entry
	loaded   bool
	running  bool
	seq      uint64
	detached map[uint64]*detachedUnlock

	// inflight is replaced on every Start so a Stop that gave up waiting
	// never races a later Add.
	inflight *sync.WaitGroup

	loopCancel context.CancelFunc
	loopDone   chan struct{}

	persistWarn *logx.Throttle
}

type Option func(*Manager)

// WithClock replaces the wall clock and timer source.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics records manager activity on mt.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New returns a stopped manager. store may be nil (no persistence) and
// locker may be nil (fires are recorded but nothing is locked).
func New(cfg Config, locker Locker, store storage.Store, log logx.Logger, bus eventbus.Bus, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if locker == nil {
		locker = LockerFuncs{}
	}
	m := &Manager{
		log:         log,
		cfg:         cfg,
		bus:         bus,
		store:       store,
		locker:      locker,
		clock:       realClock{},
		table:       map[string]*entry{},
		detached:    map[uint64]*detachedUnlock{},
		inflight:    &sync.WaitGroup{},
		persistWarn: logx.NewThrottle(time.Minute, 3),
	}
	for _, o := range opts {
		o(m)
	}
	m.loc = m.loadLocationLocked()
	return m
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Location returns the zone wall-clock schedules are evaluated in.
func (m *Manager) Location() *time.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loc
}

// Start loads the persisted table (first call only), arms every enabled
// schedule and starts the clock-jump watcher. It is a no-op when running.
//
// A store that cannot be read at all is an error: starting with an empty
// table would overwrite it on the next save.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	m.loc = m.loadLocationLocked()
	m.running = true
	m.inflight = &sync.WaitGroup{}

	dirty := false
	for _, e := range m.sortedLocked() {
		if m.armLocked(e) {
			dirty = true
		}
	}
	if dirty {
		m.saveLocked(ctx)
	}
	m.updateArmedLocked()

	if iv := m.cfg.ClockCheckInterval; iv > 0 {
		lctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		m.loopCancel, m.loopDone = cancel, done
		go m.watchClock(lctx, iv, done)
	}

	m.log.Info("scheduler started",
		logx.String("tz", m.loc.String()),
		logx.Int("schedules", len(m.table)),
		logx.Int("armed", m.armedCountLocked()),
	)
	return nil
}

// Stop cancels every lock and unlock timer, stops the watcher and waits for
// in-flight callbacks until ctx is done. The table stays loaded.
//
// Calling Stop from inside a Locker callback only returns once ctx expires.
func (m *Manager) Stop(ctx context.Context) {
	start := time.Now()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	for _, e := range m.table {
		m.cancelAllLocked(e)
	}
	for seq, d := range m.detached {
		_ = d.t.Stop()
		delete(m.detached, seq)
	}
	m.updateArmedLocked()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	wg := m.inflight
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		m.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		m.log.Warn("scheduler stop timed out waiting for callbacks", logx.Duration("took", time.Since(start)))
	}
}

// Load reads the table from the store without arming anything. It replaces
// any previously loaded table and fails with ErrRunning after Start.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunning
	}
	m.loaded = false
	return m.ensureLoadedLocked(ctx)
}

// Apply hot-reloads cfg. A timezone change re-arms every wall-clock schedule.
func (m *Manager) Apply(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldTZ := strings.TrimSpace(m.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	m.cfg = cfg
	if oldTZ == newTZ {
		return
	}
	m.loc = m.loadLocationLocked()
	m.log.Info("timezone changed", logx.String("from", oldTZ), logx.String("to", m.loc.String()))
	if m.running {
		m.rearmWallClockLocked(context.Background(), "timezone change")
	}
}

func (m *Manager) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(m.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		m.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

func (m *Manager) ensureLoadedLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	if m.store == nil {
		m.loaded = true
		return nil
	}
	ss, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	m.table = make(map[string]*entry, len(ss))
	for _, s := range ss {
		m.table[s.ID] = &entry{s: s}
	}
	m.loaded = true
	m.log.Debug("schedules loaded", logx.Int("count", len(ss)))
	return nil
}

// saveLocked writes the whole table. Failures are logged (throttled) and
// counted but never returned: timer callbacks must carry on regardless.
func (m *Manager) saveLocked(ctx context.Context) {
	if m.store == nil {
		return
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := m.store.Save(ctx, m.listLocked()); err != nil {
		m.metrics.persistFailed()
		m.persistWarn.Warn(m.log, "failed to persist schedules", logx.Err(err))
	}
}

func (m *Manager) sortedLocked() []*entry {
	out := make([]*entry, 0, len(m.table))
	for _, e := range m.table {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].s.ID < out[j].s.ID })
	return out
}

func (m *Manager) listLocked() []schedule.Schedule {
	es := m.sortedLocked()
	out := make([]schedule.Schedule, 0, len(es))
	for _, e := range es {
		out = append(out, e.s.Clone())
	}
	return out
}

func (m *Manager) armedCountLocked() int {
	n := 0
	for _, e := range m.table {
		if e.lock != nil {
			n++
		}
	}
	return n
}

func (m *Manager) updateArmedLocked() {
	m.metrics.setArmed(m.armedCountLocked())
}

func (m *Manager) now() time.Time {
	return m.clock.Now().In(m.loc)
}

func (m *Manager) publish(typ string, d EventData) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: m.clock.Now(), Data: d})
}

func eventFor(s schedule.Schedule) EventData {
	return EventData{ID: s.ID, Name: s.Name, Kind: s.Kind, Action: s.Action}
}
