package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRoundTripEveryKind(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("test", 2*3600)
	in := []Schedule{
		{ID: "a1", Name: "boot lock", Action: ActionKeyboard, Kind: KindCountdown, Anchor: Seconds(45), Duration: 10 * time.Second, Enabled: true},
		{ID: "b2", Name: "exam", Action: ActionBoth, Kind: KindOnce, Anchor: Absolute{At: time.Date(2030, 5, 6, 7, 8, 9, 0, loc)}, Enabled: false},
		{ID: "c3", Name: "lunch", Action: ActionMouse, Kind: KindDaily, Anchor: tod(12, 0, 0), Duration: time.Hour, Enabled: true},
		{ID: "d4", Name: "work", Action: ActionBoth, Kind: KindWeekdays, Anchor: tod(9, 30, 0), Enabled: true},
		{ID: "e5", Name: "weekend", Action: ActionKeyboard, Kind: KindWeekends, Anchor: tod(22, 0, 0), Duration: 8 * time.Hour, Enabled: true},
		{ID: "f6", Name: "gym", Action: ActionBoth, Kind: KindWeekly, Anchor: tod(18, 15, 30), Days: []Day{Monday, Wednesday, Sunday}, Enabled: true},
	}

	data, err := MarshalTable(in)
	require.NoError(t, err)

	out, skipped, err := UnmarshalTable(data, loc)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, out, len(in))

	for i := range in {
		want, got := in[i], out[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Action, got.Action)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Days, got.Days)
		assert.Equal(t, want.Duration, got.Duration)
		assert.Equal(t, want.Enabled, got.Enabled)
		if a, ok := want.Anchor.(Absolute); ok {
			b, ok := got.Anchor.(Absolute)
			require.True(t, ok)
			assert.True(t, a.At.Equal(b.At), "once anchor %s != %s", a.At, b.At)
		} else {
			assert.Equal(t, want.Anchor, got.Anchor)
		}
	}
}

func TestRecordWireShape(t *testing.T) {
	t.Parallel()
	data, err := MarshalTable([]Schedule{
		{ID: "cd", Action: ActionBoth, Kind: KindCountdown, Anchor: Seconds(5), Enabled: true},
		{ID: "dl", Action: ActionBoth, Kind: KindDaily, Anchor: tod(7, 5, 0), Enabled: true},
	})
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, float64(5), raw["cd"]["start_time"], "countdown start_time is numeric")
	assert.Equal(t, "07:05:00", raw["dl"]["start_time"])
	assert.Equal(t, "countdown", raw["cd"]["time_type"])
	assert.NotContains(t, raw["dl"], "duration", "indefinite lock omits duration")
	assert.NotContains(t, raw["dl"], "days")
}

func TestFromRecordAcceptsStringCountdown(t *testing.T) {
	t.Parallel()
	r := Record{ID: "x", Action: "both", TimeType: "countdown", StartTime: json.RawMessage(`"30"`)}
	s, err := FromRecord(r, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Seconds(30), s.Anchor)
	assert.True(t, s.Enabled, "missing enabled defaults to true")
}

func TestUnmarshalTableSkipsMalformed(t *testing.T) {
	t.Parallel()
	doc := `{
  "good": {"id": "good", "name": "ok", "action": "mouse", "time_type": "daily", "start_time": "08:00:00"},
  "keyless": {"name": "no id", "action": "both", "time_type": "countdown", "start_time": 3},
  "badtime": {"id": "badtime", "action": "both", "time_type": "daily", "start_time": "8am"},
  "badkind": {"id": "badkind", "action": "both", "time_type": "hourly", "start_time": "08:00:00"},
  "nodays": {"id": "nodays", "action": "both", "time_type": "weekly", "start_time": "08:00:00"},
  "zerodur": {"id": "zerodur", "action": "both", "time_type": "daily", "start_time": "08:00:00", "duration": 0},
  "mismatch": {"id": "other", "action": "both", "time_type": "daily", "start_time": "08:00:00"},
  "garbage": 17
}`
	out, skipped, err := UnmarshalTable([]byte(doc), time.UTC)
	require.NoError(t, err)

	ids := make([]string, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"good", "keyless"}, ids)
	assert.Len(t, skipped, 6)
	for _, e := range skipped {
		assert.True(t, errors.Is(e, ErrInvalidSchedule), "skip reason %v", e)
	}
}

func TestUnmarshalTableRejectsNonObject(t *testing.T) {
	t.Parallel()
	_, _, err := UnmarshalTable([]byte(`[1,2,3]`), time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))

	out, skipped, err := UnmarshalTable([]byte("  \n"), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, skipped)
}

func TestParseAnchorOnceUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC-5", -5*3600)
	a, err := ParseAnchor(KindOnce, "2031-01-02 03:04:05", loc)
	require.NoError(t, err)
	abs, ok := a.(Absolute)
	require.True(t, ok)
	assert.True(t, abs.At.Equal(time.Date(2031, 1, 2, 8, 4, 5, 0, time.UTC)))
}

func TestFromRecordRejectsOverflow(t *testing.T) {
	t.Parallel()
	huge := 10_000_000_000
	tests := []struct {
		name string
		rec  Record
	}{
		{name: "countdown start_time", rec: Record{ID: "a", Action: "both", TimeType: "countdown", StartTime: json.RawMessage(`10000000000`)}},
		{name: "duration", rec: Record{ID: "b", Action: "both", TimeType: "daily", StartTime: json.RawMessage(`"07:00:00"`), Duration: &huge}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromRecord(tt.rec, time.UTC)
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}
