package metrics

import "time"

// Kind classifies an Event.
type Kind string

const (
	// KindStage marks the end of a pipeline stage (region, scale, edges,
	// grid, ensemble, verify, nms, flag).
	KindStage Kind = "stage"

	// KindStrategy marks the end of one detection strategy.
	KindStrategy Kind = "strategy"

	// KindCache records a template cache lookup.
	KindCache Kind = "cache"

	// KindDetections records the final number of detections of a run.
	KindDetections Kind = "detections"
)

// Event is a single metric observation.
type Event struct {
	RunID    string        `json:"run_id"`
	Kind     Kind          `json:"kind"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Count    int           `json:"count,omitempty"`
	Hit      bool          `json:"hit,omitempty"`
	Err      string        `json:"error,omitempty"`
	Time     time.Time     `json:"time"`
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block the caller for long; the detector records from strategy
// goroutines.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Record calls f(e).
func (f SinkFunc) Record(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi forwards each event to every non-nil sink in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
