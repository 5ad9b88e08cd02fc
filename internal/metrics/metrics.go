package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeError              = "error"
)

// Metrics holds the auth core's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	logins              *prometheus.CounterVec
	refreshes           *prometheus.CounterVec
	lockouts            prometheus.Counter
	throttleFailOpen    prometheus.Counter
	blacklistFailClosed prometheus.Counter
	blacklistWrites     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "lockouts_total",
			Help:      "Accounts that reached the failed login threshold.",
		}),
		throttleFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "throttle_fail_open_total",
			Help:      "Login attempts allowed because the attempt counter was unavailable.",
		}),
		blacklistFailClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "blacklist_fail_closed_total",
			Help:      "Access tokens rejected because the blacklist could not be read.",
		}),
		blacklistWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "blacklist_writes_total",
			Help:      "Access token blacklist writes by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.lockouts, m.throttleFailOpen, m.blacklistFailClosed, m.blacklistWrites)
	return m
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) ThrottleFailOpen() {
	if m == nil {
		return
	}
	m.throttleFailOpen.Inc()
}

func (m *Metrics) BlacklistFailClosed() {
	if m == nil {
		return
	}
	m.blacklistFailClosed.Inc()
}

func (m *Metrics) BlacklistWrite(outcome string) {
	if m == nil {
		return
	}
	m.blacklistWrites.WithLabelValues(outcome).Inc()
}
