// Package prometheus renders controller metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [wt.Controller] and exposes an
// [net/http.Handler] that serves all counters and histograms. Counter names
// are prefixed wt_*_total; the single histogram is
// wt_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler where they choose.
//   - Mutate controller state.
package prometheus
