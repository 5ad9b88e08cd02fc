package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Login(OutcomeSuccess)
	m.Login(OutcomeSuccess)
	m.Login(OutcomeLocked)
	m.Lockout()
	m.Refresh(OutcomeInvalidToken)

	require.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeLocked)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeInvalidToken)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Login(OutcomeSuccess)
		m.Refresh(OutcomeError)
		m.Lockout()
		m.ThrottleFailOpen()
		m.BlacklistFailClosed()
		m.BlacklistWrite(OutcomeError)
	})
}
