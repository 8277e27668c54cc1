// Package pipeline wires the detection stages into a single run over one
// screenshot:
//
//	tier -> region -> edges -> scale -> grid -> ensemble -> verify -> NMS -> flag -> order
//
// A Detector is configured once and is safe for concurrent runs. Each run
// gets its own metrics accumulator and run id; nothing is shared between
// runs except the scaled-template cache.
//
// Only caller-level problems (undecodable input, an empty pixel source, an
// unknown strategy, a cancelled context) are returned as errors. Missing
// evidence lowers confidence instead.
package pipeline
