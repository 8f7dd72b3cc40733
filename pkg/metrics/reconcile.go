package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records sweep outcomes for the reconcile worker.
type ReconcileMetrics struct {
	sweepDuration *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	sweepFailures *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconcile metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_sweep_duration_seconds",
		Help:    "Duration of reconcile sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_transitions_total",
		Help: "Ledger transitions applied by reconcile sweeps, by resulting status.",
	}, []string{"status"})
	sweepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_sweep_failures_total",
		Help: "Reconcile sweep executions that returned an error.",
	}, []string{"job"})
	reg.MustRegister(sweepDuration, transitions, sweepFailures)
	return &ReconcileMetrics{
		sweepDuration: sweepDuration,
		transitions:   transitions,
		sweepFailures: sweepFailures,
	}
}

// ObserveSweep records the duration for the named sweep job.
func (m *ReconcileMetrics) ObserveSweep(job string, duration time.Duration) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncTransition counts one applied transition into the given status.
func (m *ReconcileMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncSweepFailure counts a failed sweep execution.
func (m *ReconcileMetrics) IncSweepFailure(job string) {
	if m == nil || m.sweepFailures == nil {
		return
	}
	m.sweepFailures.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
