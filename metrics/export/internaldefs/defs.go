package internaldefs

import (
	"github.com/bazaarops/tabauth"
)

// CounterDef names one tabauth counter.
type CounterDef struct {
	ID   tabauth.MetricID
	Name string
	Help string
}

// HistogramDef names one tabauth histogram.
type HistogramDef struct {
	ID   tabauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events dropped by the audit dispatcher.
const AuditDroppedName = "tabauth_audit_dropped_total"

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: tabauth.MetricLoginSuccess, Name: "tabauth_login_success_total", Help: "Logins that authenticated the tab."},
	{ID: tabauth.MetricLoginRejected, Name: "tabauth_login_rejected_total", Help: "Logins ignored for a missing or unusable token."},
	{ID: tabauth.MetricLogout, Name: "tabauth_logout_total", Help: "Logouts, including automatic ones."},
	{ID: tabauth.MetricSwitchAccount, Name: "tabauth_switch_account_total", Help: "Successful account switches."},
	{ID: tabauth.MetricCheckAuthRestored, Name: "tabauth_checkauth_restored_total", Help: "CheckAuth calls that restored a stored session."},
	{ID: tabauth.MetricCheckAuthEmpty, Name: "tabauth_checkauth_empty_total", Help: "CheckAuth calls that found no stored session."},
	{ID: tabauth.MetricSessionExpired, Name: "tabauth_session_expired_total", Help: "Stored sessions discarded as expired."},
	{ID: tabauth.MetricSessionTampered, Name: "tabauth_session_tampered_total", Help: "Stored sessions discarded as corrupt or inconsistent with their token."},
	{ID: tabauth.MetricStorageFailure, Name: "tabauth_storage_failure_total", Help: "Storage operations that failed and were absorbed."},
	{ID: tabauth.MetricRegistryCorrupt, Name: "tabauth_registry_corrupt_total", Help: "Active accounts registry reads that failed to parse."},
	{ID: tabauth.MetricRegistryPurged, Name: "tabauth_registry_purged_total", Help: "Stale registry entries removed by sweeps."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tabauth.MetricCheckAuthLatency, Name: "tabauth_checkauth_latency_seconds", Help: "CheckAuth latency histogram."},
}

// HistogramBounds are the Prometheus le labels matching the core bucket layout.
var HistogramBounds = []string{
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"0.025",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument name suffixes.
var HistogramBoundSuffix = []string{
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_025",
	"0_1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
