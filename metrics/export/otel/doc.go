// Package otel provides OpenTelemetry metric bindings for controller
// counters and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each
// counter and Int64ObservableGauge instruments per histogram bucket. A
// single callback reads [wt.Controller.MetricsSnapshot] on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate controller state.
package otel
