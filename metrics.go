package tabauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced an authenticated state.
	MetricLoginSuccess MetricID = iota
	// MetricLoginRejected counts logins dropped for a missing or unusable token.
	MetricLoginRejected
	// MetricLogout counts logout calls, including implicit ones.
	MetricLogout
	// MetricSwitchAccount counts account switches.
	MetricSwitchAccount
	// MetricCheckAuthRestored counts CheckAuth calls that restored a session.
	MetricCheckAuthRestored
	// MetricCheckAuthEmpty counts CheckAuth calls that found no record.
	MetricCheckAuthEmpty
	// MetricSessionExpired counts records discarded for expiry.
	MetricSessionExpired
	// MetricSessionTampered counts records discarded because their token disagreed.
	MetricSessionTampered
	// MetricStorageFailure counts tier operations that failed and were absorbed.
	MetricStorageFailure
	// MetricRegistryCorrupt counts registry blobs replaced after a parse failure.
	MetricRegistryCorrupt
	// MetricRegistryPurged counts stale registry entries removed by sweeps.
	MetricRegistryPurged
	// MetricCheckAuthLatency is the CheckAuth latency histogram.
	MetricCheckAuthLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free counters safe for concurrent use. A nil or disabled
// Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records a latency sample. Only MetricCheckAuthLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricCheckAuthLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricCheckAuthLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCheckAuthLatency].buckets[i])
		}
		s.Histograms[MetricCheckAuthLatency] = buckets
	}

	return s
}

// Bucket upper bounds: 100µs, 250µs, 500µs, 1ms, 5ms, 25ms, 100ms, +Inf.
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 100:
		return 0
	case us <= 250:
		return 1
	case us <= 500:
		return 2
	case us <= 1000:
		return 3
	case us <= 5000:
		return 4
	case us <= 25000:
		return 5
	case us <= 100000:
		return 6
	default:
		return 7
	}
}
