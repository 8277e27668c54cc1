// Package metrics carries per-run introspection data out of the detector.
//
// The detection core only ever writes to a Sink. An Accumulator collects one
// run's events for a caller to inspect after the run; PrometheusSink and Hub
// forward events to long-lived observers (a /metrics endpoint and websocket
// debug clients). Multi fans one stream out to several sinks.
package metrics
