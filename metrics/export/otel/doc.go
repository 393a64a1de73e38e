// Package otel binds engine metrics to an OpenTelemetry Meter.
//
// Counters become Int64ObservableCounter instruments and each latency bucket
// becomes a cumulative Int64ObservableGauge. The caller owns the
// MeterProvider; [Exporter.Close] only unregisters the callback.
package otel
