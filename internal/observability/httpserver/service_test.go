package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keylock/internal/schedule"
	"keylock/internal/scheduler"
	logx "keylock/pkg/logx"
)

type staticSource scheduler.Snapshot

func (s staticSource) Snapshot() scheduler.Snapshot { return scheduler.Snapshot(s) }

var now = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

func testDeps(t *testing.T) Deps {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "keylock_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	return Deps{
		Gatherer: reg,
		Schedules: staticSource{
			Running:  true,
			Timezone: "UTC",
			Now:      now,
			Schedules: []scheduler.ScheduleInfo{
				{
					Schedule: schedule.Schedule{
						ID: "abc12345", Name: "homework", Action: schedule.ActionBoth,
						Kind: schedule.KindDaily, Anchor: schedule.TimeOfDay{Hour: 9},
						Duration: time.Hour, Enabled: true,
					},
					Armed: true,
					Next:  now.Add(time.Hour),
				},
				{
					Schedule: schedule.Schedule{
						ID: "off00001", Action: schedule.ActionMouse,
						Kind: schedule.KindCountdown, Anchor: schedule.Seconds(30),
					},
				},
			},
		},
	}
}

func get(t *testing.T, h http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSchedulesEndpoint(t *testing.T) {
	t.Parallel()
	h := New(Config{}, logx.Nop(), testDeps(t)).Handler()

	rec := get(t, h, "/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Running   bool `json:"running"`
		Schedules []struct {
			ID        string          `json:"id"`
			TimeType  string          `json:"time_type"`
			StartTime json.RawMessage `json:"start_time"`
			Duration  *int            `json:"duration"`
			Armed     bool            `json:"armed"`
			NextFire  *time.Time      `json:"next_fire"`
		} `json:"schedules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Running)
	require.Len(t, body.Schedules, 2)

	daily := body.Schedules[0]
	assert.Equal(t, "daily", daily.TimeType)
	assert.JSONEq(t, `"09:00:00"`, string(daily.StartTime))
	require.NotNil(t, daily.Duration)
	assert.Equal(t, 3600, *daily.Duration)
	require.NotNil(t, daily.NextFire)
	assert.True(t, daily.NextFire.Equal(now.Add(time.Hour)))

	cd := body.Schedules[1]
	assert.Equal(t, "30", string(cd.StartTime))
	assert.False(t, cd.Armed)
	assert.Nil(t, cd.NextFire)
}

func TestScheduleByID(t *testing.T) {
	t.Parallel()
	h := New(Config{}, logx.Nop(), testDeps(t)).Handler()

	rec := get(t, h, "/schedules/abc12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"homework"`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/schedules/nope", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h := New(Config{}, logx.Nop(), testDeps(t)).Handler()
	rec := get(t, h, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keylock_test_total 1")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	deps := testDeps(t)
	healthy := true
	deps.Health = func() Health { return Health{OK: healthy, Details: map[string]any{"scheduler": healthy}} }
	h := New(Config{}, logx.Nop(), deps).Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", "").Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz", "").Code)
}

func TestTokenGuard(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "s3cret"}, logx.Nop(), testDeps(t)).Handler()

	tests := []struct {
		name string
		path string
		auth string
		want int
	}{
		{name: "missing", path: "/schedules", want: http.StatusUnauthorized},
		{name: "wrong bearer", path: "/schedules", auth: "nope", want: http.StatusUnauthorized},
		{name: "bearer", path: "/schedules", auth: "s3cret", want: http.StatusOK},
		{name: "query", path: "/healthz?token=s3cret", want: http.StatusOK},
		{name: "metrics guarded", path: "/metrics", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, get(t, h, tt.path, tt.auth).Code)
		})
	}
}

func TestPprofToggle(t *testing.T) {
	t.Parallel()
	s := New(Config{PprofPrefix: "/dbg"}, logx.Nop(), Deps{})
	h := s.Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/dbg/", "").Code)

	s.Reconfigure(context.Background(), Config{Pprof: true, PprofPrefix: "/dbg"})
	rec := get(t, h, "/dbg/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")
}

func TestServeLifecycle(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), testDeps(t))
	ctx := context.Background()
	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(b), `"ok": true`))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.Reconfigure(stopCtx, Config{Enabled: false})
	assert.Empty(t, s.Addr())
	assert.Nil(t, s.Supervisor())
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	assert.False(t, isLoopbackAddr("0.0.0.0:9464"))
	assert.False(t, isLoopbackAddr(":9464"))
	assert.True(t, isLoopbackAddr("[::1]:9464"))
	assert.True(t, isLoopbackAddr("localhost:9464"))
}
