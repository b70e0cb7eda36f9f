package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"keylock/internal/config"
	"keylock/internal/device"
	"keylock/internal/eventbus"
	"keylock/internal/observability/httpserver"
	"keylock/internal/runtime/supervisor"
	"keylock/internal/scheduler"
	"keylock/internal/storage"
	logx "keylock/pkg/logx"
	"keylock/pkg/systemd"
)

// App wires the daemon: config, logging, storage, device controller,
// scheduler, status server and systemd notifications.
type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *prometheus.Registry

	dev    *device.Controller
	sched  *scheduler.Manager
	http   *httpserver.Service
	notify *systemd.Notifier
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()

	store, err := storage.Open(mapStorageConfig(cfg), root)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		log.Warn("storage disabled; schedules will not survive a restart")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dev := device.New(mapDeviceConfig(cfg), root.With(logx.String("comp", "device")), bus)
	sched := scheduler.New(mapSchedulerConfig(cfg), dev, store,
		root.With(logx.String("comp", "scheduler")), bus,
		scheduler.WithMetrics(scheduler.NewMetrics(reg)),
	)
	registerAppMetrics(reg, dev, bus)

	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		store:  store,
		reg:    reg,
		dev:    dev,
		sched:  sched,
		notify: systemd.NewNotifier(root),
	}
	a.http = httpserver.New(mapHTTPConfig(cfg), root, httpserver.Deps{
		Gatherer:  reg,
		Schedules: sched,
		Health:    a.health,
	})
	return a, nil
}

func registerAppMetrics(reg prometheus.Registerer, dev *device.Controller, bus eventbus.Bus) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "keylock",
			Name:      "keyboard_locked",
			Help:      "1 while the keyboard is locked.",
		}, func() float64 { return boolFloat(dev.State().Keyboard) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "keylock",
			Name:      "mouse_locked",
			Help:      "1 while the mouse is locked.",
		}, func() float64 { return boolFloat(dev.State().Mouse) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "events_dropped_total",
			Help:      "Event deliveries dropped because a subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) }),
	)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (a *App) Scheduler() *scheduler.Manager { return a.sched }
func (a *App) Device() *device.Controller    { return a.dev }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// ReopenLogs reopens the log file sink after an external rotation.
func (a *App) ReopenLogs() {
	a.logs.Reopen()
	a.log.Info("log file reopened")
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetValidator(a.validateReload)
	run := a.sup.Context()

	// Subscribe before anything publishes so startup arm/retire events are logged.
	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("events.log", func(ctx context.Context) {
		defer unsub()
		a.logEvents(ctx, events)
	})

	if err := a.dev.LockOnStart(run); err != nil {
		a.log.Warn("startup lock failed", logx.Err(err))
	}
	if err := a.sched.Start(run); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.http.Reconfigure(run, mapHTTPConfig(a.cfgm.Get()))

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.notify.Watchdog)

	a.notify.Ready()
	a.notify.Status(a.statusLine())
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("timezone", a.sched.Location().String()),
		logx.Int("schedules", len(a.sched.ListSchedules())),
	)
	return nil
}

// validateReload runs after config.Validate for hot reloads. Hook programs
// must resolve so a typo does not silently disable locking.
func (a *App) validateReload(ctx context.Context, cfg *config.Config) error {
	var errs []error
	for name, argv := range map[string][]string{
		"device.lock_command":   cfg.Device.LockCommand,
		"device.unlock_command": cfg.Device.UnlockCommand,
	} {
		if len(argv) == 0 {
			continue
		}
		if _, err := exec.LookPath(argv[0]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) health() httpserver.Health {
	running := a.sched.Running()
	var supErr error
	if a.sup != nil {
		supErr = a.sup.Err()
	}
	details := map[string]any{
		"scheduler_running": running,
		"device":            a.dev.State(),
		"events_dropped":    a.bus.Dropped(),
	}
	if a.sup != nil {
		details["supervisor"] = a.sup.Snapshot()
	}
	return httpserver.Health{OK: running && supErr == nil, Details: details}
}

func (a *App) statusLine() string {
	snap := a.sched.Snapshot()
	armed := 0
	for _, s := range snap.Schedules {
		if s.Armed {
			armed++
		}
	}
	st := a.dev.State()
	return fmt.Sprintf("%d/%d schedules armed; keyboard locked=%t mouse locked=%t",
		armed, len(snap.Schedules), st.Keyboard, st.Mouse)
}

// logEvents logs bus traffic and keeps the systemd status line current.
func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch d := e.Data.(type) {
			case scheduler.EventData:
				fields := []logx.Field{logx.String("type", e.Type), logx.String("id", d.ID)}
				if d.Reason != "" {
					fields = append(fields, logx.String("reason", d.Reason))
				}
				if d.Error != "" {
					fields = append(fields, logx.String("error", d.Error))
				}
				if e.Type == scheduler.EventArmed {
					a.log.Debug("event", fields...)
				} else {
					a.log.Info("event", fields...)
				}
			default:
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
			a.notify.Status(a.statusLine())
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()
	a.sup.Cancel()

	a.step(ctx, "scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "http", time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	a.step(ctx, "storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline so
// a stuck component cannot stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
