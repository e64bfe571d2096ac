// Package metrics holds the Prometheus collectors of the attendance core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attendly"

type Metrics struct {
	rotations     *prometheus.CounterVec
	leaseOps      *prometheus.CounterVec
	sessionStarts *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	sessionsSwept prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rotations_total",
			Help:      "Token rotations by result (published, lost).",
		}, []string{"result"}),
		leaseOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_operations_total",
			Help:      "Host lease operations by operation and result (held, lost).",
		}, []string{"op", "result"}),
		sessionStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Attendance session start attempts by outcome.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Attendance submissions by outcome.",
		}, []string{"outcome"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired attendance sessions deleted by the sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{m.rotations, m.leaseOps, m.sessionStarts, m.submissions, m.sessionsSwept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveRotation(published bool) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(heldLabel(published, "published")).Inc()
}

func (m *Metrics) ObserveLease(op string, held bool) {
	if m == nil {
		return
	}
	m.leaseOps.WithLabelValues(op, heldLabel(held, "held")).Inc()
}

func (m *Metrics) ObserveSessionStart(outcome string) {
	if m == nil {
		return
	}
	m.sessionStarts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

func heldLabel(ok bool, yes string) string {
	if ok {
		return yes
	}
	return "lost"
}
