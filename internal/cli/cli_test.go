package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keylock/internal/schedule"
)

func newConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"scheduler": map[string]any{"timezone": "UTC"},
		"storage":   map[string]any{"driver": "file", "path": filepath.Join(dir, "schedules.json")},
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	t.Parallel()
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "schedule")

	sched, _, err := root.Find([]string{"schedule"})
	require.NoError(t, err)
	var subs []string
	for _, c := range sched.Commands() {
		subs = append(subs, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "add", "remove", "enable", "disable", "next"}, subs)
	assert.Equal(t, defaultConfigPath, root.PersistentFlags().Lookup("config").DefValue)
}

func TestScheduleWorkflow(t *testing.T) {
	t.Parallel()
	cfg := newConfig(t)

	out, err := execute(t, cfg, "schedule", "add", "--id", "bedtime1", "--kind", "daily", "--at", "21:30", "--duration", "8h", "--name", "bedtime")
	require.NoError(t, err)
	assert.Equal(t, "bedtime1\n", out)

	out, err = execute(t, cfg, "schedule", "add", "--kind", "weekly", "--days", "mon,thu", "--at", "09:00:00", "--action", "keyboard")
	require.NoError(t, err)
	weeklyID := strings.TrimSpace(out)
	assert.Len(t, weeklyID, 8)

	out, err = execute(t, cfg, "schedule", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bedtime1")
	assert.Contains(t, out, "daily 21:30:00 for 8h0m0s")
	assert.Contains(t, out, "weekly Mon,Thu 09:00:00")

	_, err = execute(t, cfg, "schedule", "disable", "bedtime1")
	require.NoError(t, err)

	out, err = execute(t, cfg, "schedule", "list", "--json")
	require.NoError(t, err)
	var recs []schedule.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	for _, r := range recs {
		if r.ID == "bedtime1" {
			require.NotNil(t, r.Enabled)
			assert.False(t, *r.Enabled)
			require.NotNil(t, r.Duration)
			assert.Equal(t, 8*3600, *r.Duration)
		}
	}

	out, err = execute(t, cfg, "schedule", "next", weeklyID, "-n", "2")
	require.NoError(t, err)
	// Once in the rule summary plus two occurrences.
	assert.Equal(t, 3, strings.Count(out, "09:00:00"))

	_, err = execute(t, cfg, "schedule", "remove", "bedtime1")
	require.NoError(t, err)
	_, err = execute(t, cfg, "schedule", "remove", "bedtime1")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestAddRejectsInvalid(t *testing.T) {
	t.Parallel()
	cfg := newConfig(t)
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad kind", args: []string{"--kind", "hourly", "--at", "10:00"}},
		{name: "bad action", args: []string{"--kind", "daily", "--at", "10:00", "--action", "screen"}},
		{name: "weekly without days", args: []string{"--kind", "weekly", "--at", "10:00"}},
		{name: "days on daily", args: []string{"--kind", "daily", "--at", "10:00", "--days", "mon"}},
		{name: "bad day", args: []string{"--kind", "weekly", "--at", "10:00", "--days", "funday"}},
		{name: "zero countdown", args: []string{"--kind", "countdown", "--at", "0"}},
		{name: "bad duration", args: []string{"--kind", "daily", "--at", "10:00", "--duration", "forever"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := execute(t, cfg, append([]string{"schedule", "add"}, tt.args...)...)
			assert.ErrorIs(t, err, schedule.ErrInvalidSchedule)
		})
	}
}

func TestParseAt(t *testing.T) {
	t.Parallel()
	a, err := parseAt(schedule.KindCountdown, "5m", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, schedule.Seconds(300), a)

	a, err = parseAt(schedule.KindCountdown, "45", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, schedule.Seconds(45), a)

	a, err = parseAt(schedule.KindWeekdays, "07:15", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, schedule.TimeOfDay{Hour: 7, Minute: 15}, a)

	a, err = parseAt(schedule.KindOnce, "2030-01-02 03:04:05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, schedule.Absolute{At: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}, a)
}

func TestParseDays(t *testing.T) {
	t.Parallel()
	days, err := parseDays("Monday, sun,3")
	require.NoError(t, err)
	assert.Equal(t, []schedule.Day{schedule.Monday, schedule.Sunday, schedule.Thursday}, days)
}
