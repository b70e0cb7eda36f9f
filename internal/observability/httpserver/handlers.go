package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keylock/internal/schedule"
	"keylock/internal/scheduler"
	logx "keylock/pkg/logx"
)

// Handler returns the routed handler. Token and pprof settings are read
// per request so Reconfigure can change them without a restart.
func (s *Service) Handler() http.Handler {
	s.mu.Lock()
	prefix := normalizePrefix(s.cfg.PprofPrefix)
	deps := s.deps
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.guard(s.handleHealth))
	if deps.Gatherer != nil {
		metrics := promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{ErrorLog: promLogger{s.log}})
		mux.Handle("GET /metrics", s.guard(metrics.ServeHTTP))
	}
	if deps.Schedules != nil {
		mux.HandleFunc("GET /schedules", s.guard(s.handleSchedules))
		mux.HandleFunc("GET /schedules/{id}", s.guard(s.handleSchedule))
	}
	s.mountPprof(mux, prefix)
	return mux
}

func (s *Service) current() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// guard enforces the bearer token when one is configured. Either
// "Authorization: Bearer <token>" or "?token=<token>" is accepted.
func (s *Service) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimSpace(s.current().Token)
		if tok == "" {
			h(w, r)
			return
		}
		got := r.URL.Query().Get("token")
		if got == "" {
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) {
				got = strings.TrimSpace(strings.TrimPrefix(ah, p))
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{OK: true}
	if s.deps.Health != nil {
		h = s.deps.Health()
	}
	code := http.StatusOK
	if !h.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

// scheduleView is a persisted record plus its live timer state.
type scheduleView struct {
	schedule.Record
	Summary  string     `json:"summary"`
	Armed    bool       `json:"armed"`
	NextFire *time.Time `json:"next_fire,omitempty"`
	UnlockAt *time.Time `json:"unlock_at,omitempty"`
}

type schedulesView struct {
	Running         bool           `json:"running"`
	Timezone        string         `json:"timezone"`
	Now             time.Time      `json:"now"`
	DetachedUnlocks int            `json:"detached_unlocks"`
	Schedules       []scheduleView `json:"schedules"`
}

func viewOf(info scheduler.ScheduleInfo) scheduleView {
	v := scheduleView{
		Record:  schedule.ToRecord(info.Schedule),
		Summary: info.Schedule.Describe(),
		Armed:   info.Armed,
	}
	if !info.Next.IsZero() {
		next := info.Next
		v.NextFire = &next
	}
	if !info.UnlockAt.IsZero() {
		at := info.UnlockAt
		v.UnlockAt = &at
	}
	return v
}

func (s *Service) handleSchedules(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Schedules.Snapshot()
	out := schedulesView{
		Running:         snap.Running,
		Timezone:        snap.Timezone,
		Now:             snap.Now,
		DetachedUnlocks: snap.Detached,
		Schedules:       make([]scheduleView, 0, len(snap.Schedules)),
	}
	for _, info := range snap.Schedules {
		out.Schedules = append(out.Schedules, viewOf(info))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, info := range s.deps.Schedules.Snapshot().Schedules {
		if info.Schedule.ID == id {
			writeJSON(w, http.StatusOK, viewOf(info))
			return
		}
	}
	http.Error(w, "schedule not found", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// promLogger routes promhttp errors into logx.
type promLogger struct{ log logx.Logger }

func (l promLogger) Println(v ...any) {
	l.log.Warn("metrics handler error", logx.Any("detail", v))
}
