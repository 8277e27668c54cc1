package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "megabonk_vision"

// PrometheusSink exports detector events as Prometheus metrics.
type PrometheusSink struct {
	stageDuration    *prometheus.HistogramVec
	strategyDuration *prometheus.HistogramVec
	strategyResults  *prometheus.CounterVec
	strategyFailures *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	detections       prometheus.Histogram
}

// NewPrometheusSink creates the collectors and registers them with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of detection pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		strategyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Duration of individual detection strategies.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"strategy"}),
		strategyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_detections_total",
			Help:      "Raw candidates produced per strategy.",
		}, []string{"strategy"}),
		strategyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_failures_total",
			Help:      "Strategies that failed, panicked or timed out.",
		}, []string{"strategy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_cache_lookups_total",
			Help:      "Scaled template cache lookups by result.",
		}, []string{"result"}),
		detections: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_detections",
			Help:      "Detections reported per run.",
			Buckets:   prometheus.LinearBuckets(0, 2, 16),
		}),
	}

	for _, c := range []prometheus.Collector{
		s.stageDuration, s.strategyDuration, s.strategyResults,
		s.strategyFailures, s.cacheLookups, s.detections,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return s, nil
}

// Record implements Sink.
func (s *PrometheusSink) Record(e Event) {
	switch e.Kind {
	case KindStage:
		s.stageDuration.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
	case KindStrategy:
		s.strategyDuration.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
		s.strategyResults.WithLabelValues(e.Name).Add(float64(e.Count))
		if e.Err != "" {
			s.strategyFailures.WithLabelValues(e.Name).Inc()
		}
	case KindCache:
		result := "miss"
		if e.Hit {
			result = "hit"
		}
		s.cacheLookups.WithLabelValues(result).Inc()
	case KindDetections:
		s.detections.Observe(float64(e.Count))
	}
}
