// Package prometheus exposes engine metrics through client_golang.
//
// [Exporter] implements prometheus.Collector over [goSession.Engine.MetricsSnapshot].
// Counters are named gosession_*_total and rotation latency is the
// gosession_rotate_latency_seconds histogram. The exporter registers in its
// own registry; callers mount [Exporter.Handler] rather than relying on the
// global default registry.
package prometheus
