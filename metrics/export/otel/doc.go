// Package otel binds tabauth counters and the CheckAuth latency histogram to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one callback that reads [tabauth.Store.MetricsSnapshot]
// on each collection cycle. Callers own the MeterProvider.
package otel
