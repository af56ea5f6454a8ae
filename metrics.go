package goLogin

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	MetricSignUpSuccess MetricID = iota
	MetricSignUpFailure
	MetricConfirmSignUpSuccess
	MetricConfirmSignUpFailure
	MetricSignInSuccess
	MetricSignInFailure
	MetricSignInIncomplete
	MetricFollowUpSignInFailure
	MetricPasswordMismatch
	MetricResendSent
	MetricResendFailure
	MetricResendRejected
	MetricPasswordResetRequest
	MetricPasswordResetRequestFailure
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricSessionRefresh
	MetricSignOut
	MetricSignOutRemoteFailure
	MetricCredentialSaved
	MetricCredentialSaveFailure
	MetricCredentialCleared
	MetricFlowOpened
	MetricFlowClosed
	MetricBusyRejected
	// MetricStaleCompletion counts provider answers that arrived after their
	// flow was closed and were dropped.
	MetricStaleCompletion
	MetricGatewayNetworkError
	// MetricGatewayLatency is the only histogram.
	MetricGatewayLatency
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

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the gateway latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGatewayLatency {
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

// Snapshot copies all counters, and the latency histogram when enabled.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGatewayLatency].buckets[i])
		}
		s.Histograms[MetricGatewayLatency] = buckets
	}

	return s
}

// Provider calls are network round-trips, so the buckets are wider than an
// in-process hot path would need.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
