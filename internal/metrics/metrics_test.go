package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpstream(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpstream("get_specialties", 200, 20*time.Millisecond)
	m.ObserveUpstream("get_specialties", 200, 30*time.Millisecond)
	m.ObserveUpstream("create_appointment", 409, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamTotal.WithLabelValues("get_specialties", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamTotal.WithLabelValues("create_appointment", "409")))
}

func TestObserveSubmissionAndSessions(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSubmission("conflict", true)
	m.ObserveSubmission("success", false)
	m.ObserveStaleDiscard("service_types")
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("conflict", "guest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("success", "authenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleDiscards.WithLabelValues("service_types")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("x", 0, time.Second)
	m.ObserveSubmission("network", true)
	m.ObserveStaleDiscard("availabilities")
	m.SetActiveSessions(1)
}
