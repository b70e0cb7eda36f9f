package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the manager's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	fires          *prometheus.CounterVec
	unlocks        prometheus.Counter
	callbackErrors *prometheus.CounterVec
	persistErrors  prometheus.Counter
	armed          prometheus.Gauge
	clockJumps     prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "schedule_fires_total",
			Help:      "Lock fires by schedule kind.",
		}, []string{"kind"}),
		unlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "schedule_unlocks_total",
			Help:      "Auto-unlocks executed.",
		}),
		callbackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "callback_errors_total",
			Help:      "Failed or panicking lock/unlock callbacks.",
		}, []string{"callback"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "persist_errors_total",
			Help:      "Failed schedule table saves.",
		}),
		armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keylock",
			Name:      "schedules_armed",
			Help:      "Schedules with an outstanding lock timer.",
		}),
		clockJumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keylock",
			Name:      "clock_jumps_total",
			Help:      "Wall clock jumps that triggered a re-arm.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fires, m.unlocks, m.callbackErrors, m.persistErrors, m.armed, m.clockJumps)
	}
	return m
}

func (m *Metrics) fired(kind string) {
	if m != nil {
		m.fires.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) unlocked() {
	if m != nil {
		m.unlocks.Inc()
	}
}

func (m *Metrics) callbackFailed(name string) {
	if m != nil {
		m.callbackErrors.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) persistFailed() {
	if m != nil {
		m.persistErrors.Inc()
	}
}

func (m *Metrics) setArmed(n int) {
	if m != nil {
		m.armed.Set(float64(n))
	}
}

func (m *Metrics) clockJumped() {
	if m != nil {
		m.clockJumps.Inc()
	}
}
