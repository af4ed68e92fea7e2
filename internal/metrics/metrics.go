package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for upstream calls and booking outcomes.
type Metrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	staleDiscards   *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total clinic API calls by operation and status",
		}, []string{"operation", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of clinic API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "wizard",
			Name:      "submissions_total",
			Help:      "Booking submissions by classified outcome",
		}, []string{"outcome", "mode"}),
		staleDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "wizard",
			Name:      "stale_responses_total",
			Help:      "Fetch results dropped because the selection moved on",
		}, []string{"collection"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking",
			Subsystem: "wizard",
			Name:      "active_sessions",
			Help:      "Wizard sessions currently held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.submissions, m.staleDiscards, m.activeSessions)
	return m
}

// ObserveUpstream records one clinic API call. status 0 means the call never
// got an HTTP response.
func (m *Metrics) ObserveUpstream(operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSubmission(outcome string, guest bool) {
	if m == nil {
		return
	}
	mode := "authenticated"
	if guest {
		mode = "guest"
	}
	m.submissions.WithLabelValues(outcome, mode).Inc()
}

func (m *Metrics) ObserveStaleDiscard(collection string) {
	if m == nil {
		return
	}
	m.staleDiscards.WithLabelValues(collection).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
