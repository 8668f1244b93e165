// Package otel publishes engine counters through an OpenTelemetry meter.
//
// Each counter family becomes one observable counter; labelled families carry
// the label as an attribute. The session check latency histogram becomes a
// cumulative bucket gauge keyed by an "le" attribute plus a count gauge.
// Values are read from the engine snapshot on every collection.
package otel
