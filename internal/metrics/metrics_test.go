package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSniperMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	m.VerdictInc("listing")
	m.VerdictInc("listing")
	m.SubmissionInc("buy", "executed")
	m.SetStage("searching", "buying")
	m.SetBlock(42)

	if got := testutil.ToFloat64(m.Verdicts.WithLabelValues("listing")); got != 2 {
		t.Fatalf("verdicts: got %v", got)
	}
	if got := testutil.ToFloat64(m.Stage.WithLabelValues("buying")); got != 1 {
		t.Fatalf("stage buying: got %v", got)
	}
	if got := testutil.ToFloat64(m.Stage.WithLabelValues("searching")); got != 0 {
		t.Fatalf("stage searching: got %v", got)
	}
	if got := testutil.ToFloat64(m.CurrentBlock); got != 42 {
		t.Fatalf("block: got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *SniperMetrics
	m.PendingSeenInc()
	m.VerdictInc("gain")
	m.SetStage("", "idle")
	m.SetGainBps(10)
}
