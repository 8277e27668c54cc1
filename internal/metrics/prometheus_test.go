package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink(reg)
	if err != nil {
		t.Fatalf("NewPrometheusSink failed: %v", err)
	}

	s.Record(Event{Kind: KindStrategy, Name: "template", Duration: time.Millisecond, Count: 3})
	s.Record(Event{Kind: KindStrategy, Name: "template", Duration: time.Millisecond, Count: 2})
	s.Record(Event{Kind: KindStrategy, Name: "color", Err: "boom"})
	s.Record(Event{Kind: KindCache, Hit: true})
	s.Record(Event{Kind: KindCache})
	s.Record(Event{Kind: KindStage, Name: "region", Duration: time.Millisecond})
	s.Record(Event{Kind: KindDetections, Count: 5})

	if got := testutil.ToFloat64(s.strategyResults.WithLabelValues("template")); got != 5 {
		t.Errorf("template detections: got %v, want 5", got)
	}
	if got := testutil.ToFloat64(s.strategyFailures.WithLabelValues("color")); got != 1 {
		t.Errorf("color failures: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.cacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.cacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses: got %v, want 1", got)
	}
	if n := testutil.CollectAndCount(s.strategyDuration); n != 2 {
		t.Errorf("strategy duration series: got %d, want 2", n)
	}
}

func TestPrometheusSink_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusSink(reg); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := NewPrometheusSink(reg); err == nil {
		t.Error("second register on the same registry should fail")
	}
}
