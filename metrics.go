package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterWeakPassword
	MetricRegisterInvalidInput
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricRefreshRateLimited
	MetricValidateSuccess
	MetricValidateFailure
	MetricLogout
	MetricLogoutAll
	MetricSigningFailure
	MetricPasswordHashUpgraded
	// MetricValidateLatency is the only histogram.
	MetricValidateLatency
	metricIDCount
)

// latencyBoundsMS are the inclusive upper bounds of every latency bucket
// except the last, which catches everything slower.
var latencyBoundsMS = [...]int64{5, 10, 25, 50, 100, 250, 500}

const latencyBuckets = len(latencyBoundsMS) + 1

// counterSlot pads each counter to its own cache line so that concurrent
// increments of different counters do not contend.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free engine counters and the validation latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled bool
	latency bool
	slots   [metricIDCount]counterSlot
	buckets [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets
// hold per-bucket (not cumulative) counts with upper bounds of
// 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg. Latency histograms require Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to the counter id. It is a no-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricValidateLatency {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d. Only MetricValidateLatency is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.buckets[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricValidateLatency {
		return 0
	}
	return m.slots[id].n.Load()
}

// Snapshot copies every counter. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range MetricValidateLatency {
		s.Counters[id] = m.slots[id].n.Load()
	}
	if m.latency {
		counts := make([]uint64, latencyBuckets)
		for i := range counts {
			counts[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricValidateLatency] = counts
	}
	return s
}

func latencyBucket(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBoundsMS {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBoundsMS)
}
