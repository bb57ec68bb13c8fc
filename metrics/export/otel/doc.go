// Package otel publishes Engine metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per Engine counter and an
// Int64ObservableGauge per histogram bucket. Callers own the MeterProvider.
package otel
