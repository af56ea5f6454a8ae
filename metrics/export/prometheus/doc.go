// Package prometheus provides a Prometheus collector for goLogin metrics.
//
// [NewPrometheusExporter] accepts a [goLogin.Engine]; the exporter is a
// [prometheus.Collector] and [PrometheusExporter.Handler] serves it in text
// exposition format. Counter names are prefixed gologin_*_total; the single
// histogram is gologin_gateway_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler
//     or register the collector themselves.
//   - Mutate engine state.
package prometheus
