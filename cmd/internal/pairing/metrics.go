package pairing

import (
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for session activity.
// A nil *Metrics records nothing.
type Metrics struct {
	transitions  *prometheus.CounterVec
	terminations *prometheus.CounterVec
	sessions     *prometheus.GaugeVec
	sweep        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_transitions_total",
			Help: "Consent session state transitions.",
		}, []string{"from", "to"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_terminations_total",
			Help: "Consent session terminations by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "consent_sessions",
			Help: "Tracked consent sessions by state.",
		}, []string{"state"}),
		sweep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consent_sweep_duration_seconds",
			Help:    "Duration of one driver pass over all sessions.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.transitions, m.terminations, m.sessions, m.sweep} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(consent.StateIdle.String()).Inc()
}

func (m *Metrics) sessionClosed(st consent.State) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(st.String()).Dec()
}

func (m *Metrics) transition(from, to consent.State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	m.sessions.WithLabelValues(from.String()).Dec()
	m.sessions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) terminated(r consent.Reason) {
	if m == nil {
		return
	}
	m.terminations.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) observeSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweep.Observe(d.Seconds())
}
