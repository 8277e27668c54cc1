package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Accumulator collects the events of one detection run.
//
// It stamps every event with its run id and time before forwarding it to the
// optional downstream sinks, so a single Accumulator per run is enough to
// feed both the run report and long-lived observers.
type Accumulator struct {
	runID string
	next  Sink

	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// NewAccumulator creates an accumulator for a run. An empty runID is
// replaced by a random UUID.
func NewAccumulator(runID string, next ...Sink) *Accumulator {
	if runID == "" {
		runID = uuid.NewString()
	}
	var downstream Sink = Discard
	if len(next) > 0 {
		downstream = Multi(next)
	}
	return &Accumulator{runID: runID, next: downstream, now: time.Now}
}

// RunID returns the id stamped on this run's events.
func (a *Accumulator) RunID() string { return a.runID }

// Record implements Sink.
func (a *Accumulator) Record(e Event) {
	e.RunID = a.runID
	if e.Time.IsZero() {
		e.Time = a.now()
	}
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
	a.next.Record(e)
}

// Snapshot is a read-only summary of a run.
type Snapshot struct {
	RunID           string                   `json:"run_id"`
	Detections      int                      `json:"detections"`
	StageTimings    map[string]time.Duration `json:"stage_timings_ns"`
	StrategyTimings map[string]time.Duration `json:"strategy_timings_ns"`
	StrategyCounts  map[string]int           `json:"strategy_counts"`
	StrategyErrors  map[string]string        `json:"strategy_errors,omitempty"`
	CacheHits       int                      `json:"cache_hits"`
	CacheMisses     int                      `json:"cache_misses"`
	Events          []Event                  `json:"events,omitempty"`
}

// Snapshot summarises the events recorded so far.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	events := append([]Event(nil), a.events...)
	a.mu.Unlock()

	s := Snapshot{
		RunID:           a.runID,
		StageTimings:    make(map[string]time.Duration),
		StrategyTimings: make(map[string]time.Duration),
		StrategyCounts:  make(map[string]int),
		StrategyErrors:  make(map[string]string),
		Events:          events,
	}
	for _, e := range events {
		switch e.Kind {
		case KindStage:
			s.StageTimings[e.Name] += e.Duration
		case KindStrategy:
			s.StrategyTimings[e.Name] += e.Duration
			s.StrategyCounts[e.Name] += e.Count
			if e.Err != "" {
				s.StrategyErrors[e.Name] = e.Err
			}
		case KindCache:
			if e.Hit {
				s.CacheHits++
			} else {
				s.CacheMisses++
			}
		case KindDetections:
			s.Detections = e.Count
		}
	}
	return s
}
