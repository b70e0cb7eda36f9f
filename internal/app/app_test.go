package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keylock/internal/config"
	"keylock/internal/schedule"
	"keylock/internal/scheduler"
	"keylock/internal/storage"
	logx "keylock/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keylock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMappingDefaults(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Scheduler.Timezone = "UTC"

	sc := mapSchedulerConfig(cfg)
	assert.Equal(t, "UTC", sc.Timezone)
	assert.Equal(t, 10*time.Second, sc.CallbackTimeout)
	assert.Equal(t, 30*time.Second, sc.ClockCheckInterval)

	st := mapStorageConfig(cfg)
	assert.Equal(t, "file", st.Driver)
	assert.Equal(t, config.DefaultStoragePath, st.Path)
	assert.Equal(t, time.UTC, st.Location)
	assert.Equal(t, time.Second, st.BusyTimeout)

	assert.Equal(t, 5*time.Second, mapDeviceConfig(cfg).CommandTimeout)

	h := mapHTTPConfig(cfg)
	assert.False(t, h.Enabled)
	assert.Equal(t, time.Duration(0), h.WriteTimeout)
}

func TestAppLifecycle(t *testing.T) {
	// logx.New sets zerolog globals; not parallel.
	path := writeConfig(t, `
logging:
  level: error
  console: true
scheduler:
  timezone: UTC
  clock_check_interval: 0s
storage:
  driver: memory
device:
  onstart_lock_keyboard: true
`)
	a, err := NewApp(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.True(t, a.Scheduler().Running())
	assert.True(t, a.Device().State().Keyboard)

	id, err := a.Scheduler().AddSchedule(ctx, schedule.Schedule{
		Name: "later", Action: schedule.ActionBoth, Kind: schedule.KindCountdown,
		Anchor: schedule.Seconds(3600), Enabled: true,
	})
	require.NoError(t, err)
	snap := a.Scheduler().Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, id, snap.Schedules[0].Schedule.ID)
	assert.True(t, snap.Schedules[0].Armed)

	h := a.health()
	assert.True(t, h.OK)
	assert.Contains(t, a.statusLine(), "1/1 schedules armed")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSignal))
	assert.False(t, a.Scheduler().Running())
}

func TestApplyConfigTimezone(t *testing.T) {
	// logx.New sets zerolog globals; not parallel.
	path := writeConfig(t, `
logging: {level: error, console: true}
scheduler: {timezone: UTC, clock_check_interval: 0s}
storage: {driver: none}
`)
	a, err := NewApp(path)
	require.NoError(t, err)

	prev := a.cfgm.Get()
	next := *prev
	next.Scheduler.Timezone = "Asia/Tokyo"
	a.applyConfig(context.Background(), prev, &next)
	assert.Equal(t, "Asia/Tokyo", a.Scheduler().Location().String())
	require.NoError(t, a.logs.Close())
}

func TestValidateReloadRejectsMissingHook(t *testing.T) {
	t.Parallel()
	a := &App{}
	cfg := config.Default()
	cfg.Device.LockCommand = []string{"/definitely/not/here/lockctl"}
	assert.Error(t, a.validateReload(context.Background(), cfg))

	cfg.Device.LockCommand = nil
	assert.NoError(t, a.validateReload(context.Background(), cfg))
}

func TestOfflineEditsPersist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := filepath.Join(dir, "schedules.json")
	path := writeConfig(t, "scheduler: {timezone: UTC}\nstorage: {driver: file, path: "+store+"}\n")
	ctx := context.Background()

	off, err := OpenOffline(ctx, path, logx.Nop())
	require.NoError(t, err)
	id, err := off.Manager.AddSchedule(ctx, schedule.Schedule{
		Action: schedule.ActionKeyboard, Kind: schedule.KindDaily,
		Anchor: schedule.TimeOfDay{Hour: 21}, Duration: time.Hour, Enabled: true,
	})
	require.NoError(t, err)
	require.NoError(t, off.Close())

	again, err := OpenOffline(ctx, path, logx.Nop())
	require.NoError(t, err)
	defer again.Close()
	got, ok := again.Manager.GetSchedule(id)
	require.True(t, ok)
	assert.Equal(t, schedule.TimeOfDay{Hour: 21}, got.Anchor)
	assert.False(t, again.Manager.Running())
}

func TestOfflineEditsWaitForDaemon(t *testing.T) {
	t.Parallel()
	store := filepath.Join(t.TempDir(), "schedules.json")
	path := writeConfig(t, "scheduler: {timezone: UTC}\nstorage: {driver: file, path: "+store+"}\n")
	cfg, err := config.NewConfigManager(path).LoadOrDefault()
	require.NoError(t, err)
	ctx := context.Background()

	startDaemon := func() (*scheduler.Manager, storage.Store) {
		st, err := storage.Open(mapStorageConfig(cfg), logx.Nop())
		require.NoError(t, err)
		m := scheduler.New(mapSchedulerConfig(cfg), scheduler.LockerFuncs{}, st, logx.Nop(), nil)
		require.NoError(t, m.Start(ctx))
		return m, st
	}

	daemon, st := startDaemon()
	id, err := daemon.AddSchedule(ctx, schedule.Schedule{
		Action: schedule.ActionBoth, Kind: schedule.KindCountdown,
		Anchor: schedule.Seconds(3600), Enabled: true,
	})
	require.NoError(t, err)

	_, err = OpenOffline(ctx, path, logx.Nop())
	require.ErrorIs(t, err, storage.ErrLocked)

	ro, err := OpenOfflineReadOnly(ctx, path, logx.Nop())
	require.NoError(t, err)
	_, ok := ro.Manager.GetSchedule(id)
	assert.True(t, ok)
	require.NoError(t, ro.Close())

	daemon.Stop(ctx)
	require.NoError(t, st.Close())

	off, err := OpenOffline(ctx, path, logx.Nop())
	require.NoError(t, err)
	_, err = off.Manager.AddSchedule(ctx, schedule.Schedule{
		ID: "cliadd01", Action: schedule.ActionMouse, Kind: schedule.KindDaily,
		Anchor: schedule.TimeOfDay{Hour: 7}, Enabled: true,
	})
	require.NoError(t, err)
	require.NoError(t, off.Close())

	daemon, st = startDaemon()
	defer func() {
		daemon.Stop(ctx)
		_ = st.Close()
	}()
	ids := []string{}
	for _, s := range daemon.ListSchedules() {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{id, "cliadd01"}, ids)
}

func TestStartupEventsAreLogged(t *testing.T) {
	// logx.New sets zerolog globals; not parallel.
	dir := t.TempDir()
	logPath := filepath.Join(dir, "keylock.log")
	storePath := filepath.Join(dir, "schedules.json")
	require.NoError(t, os.WriteFile(storePath, []byte(`{
  "past0001": {"id": "past0001", "name": "exam", "action": "both", "time_type": "once", "start_time": "2001-01-01 09:00:00", "enabled": true}
}`), 0o600))
	path := writeConfig(t, "logging: {level: debug, console: false, file: {enabled: true, path: "+logPath+"}}\n"+
		"scheduler: {timezone: UTC, clock_check_interval: 0s}\n"+
		"storage: {driver: file, path: "+storePath+"}\n")

	a, err := NewApp(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(b), `"type":"`+scheduler.EventRetired+`"`) &&
			strings.Contains(string(b), `"id":"past0001"`)
	}, 5*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopSignal))
}
