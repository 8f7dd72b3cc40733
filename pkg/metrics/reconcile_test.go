package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewReconcileMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconcileMetrics(reg)

	m.ObserveSweep("pending-sweep", 120*time.Millisecond)
	m.IncTransition("completed")
	m.IncSweepFailure("pending-sweep")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{
		"reconcile_sweep_duration_seconds",
		"reconcile_transitions_total",
		"reconcile_sweep_failures_total",
	} {
		if !found[name] {
			t.Fatalf("metric %s not registered", name)
		}
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewReconcileMetrics(nil)
	m.ObserveSweep("pending-sweep", time.Second)
	m.IncTransition("")
	m.IncSweepFailure("pending-sweep")

	var nilMetrics *ReconcileMetrics
	nilMetrics.IncTransition("completed")
}
