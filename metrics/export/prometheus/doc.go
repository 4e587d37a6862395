// Package prometheus renders tabauth metrics in the Prometheus text exposition format.
//
// [NewPrometheusExporter] reads a [tabauth.Store] and exposes an [http.Handler]. Counter
// names are prefixed tabauth_*_total; the single histogram is
// tabauth_checkauth_latency_seconds. Nothing is registered globally; callers mount the
// handler.
package prometheus
