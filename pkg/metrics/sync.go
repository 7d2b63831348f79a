package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks outbound dispatch activity per channel.
type SyncMetrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	circuit    *prometheus.GaugeVec
	coalesced  *prometheus.CounterVec
	deadLetter *prometheus.CounterVec
}

// Dispatch outcomes used as the "outcome" label value.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeStale    = "stale"
	OutcomeRejected = "rejected"
)

// NewSyncMetrics registers the sync scheduler metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_dispatch_total",
		Help: "Outbound sync task dispatches by channel and outcome.",
	}, []string{"channel", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_dispatch_duration_seconds",
		Help:    "Duration of adapter push calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	circuit := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_circuit_state",
		Help: "Circuit state per channel (0=closed, 1=open, 2=half_open).",
	}, []string{"channel"})
	coalesced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_tasks_coalesced_total",
		Help: "Queued tasks replaced by a newer task for the same key.",
	}, []string{"channel"})
	deadLetter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_dead_letter_total",
		Help: "Tasks moved to the dead-letter set after exhausting retries.",
	}, []string{"channel"})
	reg.MustRegister(dispatches, duration, circuit, coalesced, deadLetter)
	return &SyncMetrics{
		dispatches: dispatches,
		duration:   duration,
		circuit:    circuit,
		coalesced:  coalesced,
		deadLetter: deadLetter,
	}
}

// IncDispatch records a dispatch attempt outcome.
func (m *SyncMetrics) IncDispatch(channel, outcome string) {
	if m == nil || m.dispatches == nil {
		return
	}
	m.dispatches.WithLabelValues(normalizeLabel(channel), outcome).Inc()
}

// ObserveDispatch records the adapter call latency.
func (m *SyncMetrics) ObserveDispatch(channel string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(channel)).Observe(duration.Seconds())
}

// SetCircuitState records the breaker state for a channel.
func (m *SyncMetrics) SetCircuitState(channel string, state float64) {
	if m == nil || m.circuit == nil {
		return
	}
	m.circuit.WithLabelValues(normalizeLabel(channel)).Set(state)
}

// IncCoalesced counts a task replaced before dispatch.
func (m *SyncMetrics) IncCoalesced(channel string) {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncDeadLetter counts a task moved to the dead-letter set.
func (m *SyncMetrics) IncDeadLetter(channel string) {
	if m == nil || m.deadLetter == nil {
		return
	}
	m.deadLetter.WithLabelValues(normalizeLabel(channel)).Inc()
}
