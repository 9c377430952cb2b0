package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
)

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	_ = s.RecordMessage(coremetrics.MessageEvent{Kind: "trip_allocated", Phase: "allocated"})
	_ = s.RecordScene(coremetrics.SceneEvent{Tracked: 4, Pending: 1, Ops: 5})
	_ = s.RecordConnection(coremetrics.ConnectionEvent{Connected: true})

	if v := testutil.ToFloat64(s.phase.WithLabelValues("allocated")); v != 1 {
		t.Fatalf("allocated phase = %v", v)
	}
	if v := testutil.ToFloat64(s.phase.WithLabelValues("idle")); v != 0 {
		t.Fatalf("idle phase = %v", v)
	}
	if v := testutil.ToFloat64(s.tracked); v != 4 {
		t.Fatalf("tracked = %v", v)
	}
	if v := testutil.ToFloat64(s.connected); v != 1 {
		t.Fatalf("connected = %v", v)
	}

	again, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink on same registry: %v", err)
	}
	if v := testutil.ToFloat64(again.renderOps); v != 5 {
		t.Fatalf("expected shared counter, got %v", v)
	}
}
