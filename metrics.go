package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricSessionIssued MetricID = iota
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLineageRevoked
	MetricLogout
	MetricRateLimitHit
	MetricStoreError
	MetricSignUpSuccess
	MetricSignUpDuplicate
	MetricSignInSuccess
	MetricSignInFailure
	// MetricRotateLatency is the only histogram; every other id is a counter.
	MetricRotateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSessionIssued:        "session_issued",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricLineageRevoked:       "lineage_revoked",
	MetricLogout:               "logout",
	MetricRateLimitHit:         "rate_limit_hit",
	MetricStoreError:           "store_error",
	MetricSignUpSuccess:        "signup_success",
	MetricSignUpDuplicate:      "signup_duplicate",
	MetricSignInSuccess:        "signin_success",
	MetricSignInFailure:        "signin_failure",
	MetricRotateLatency:        "rotate_latency",
}

// String returns the snake_case name used in logs and exporter metric names.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// latencyBounds are the inclusive upper bounds of the rotate latency buckets.
// One extra overflow bucket follows the last bound.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// LatencyBounds returns a copy of the rotate latency bucket bounds. Snapshot
// histograms carry one more bucket than bounds for the overflow.
func LatencyBounds() []time.Duration {
	out := make([]time.Duration, len(latencyBounds))
	copy(out, latencyBounds[:])
	return out
}

func latencyBucket(d time.Duration) int {
	// Bucket on whole milliseconds so 5.4ms still lands in the 5ms bucket.
	d = d.Truncate(time.Millisecond)
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}

// counter is padded to a 64-byte cache line.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free engine counters and the rotate latency histogram.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled  bool
	latency  bool
	counters [metricIDCount]counter
	rotate   [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d against id. Only [MetricRotateLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRotateLatency {
		return
	}
	m.rotate[latencyBucket(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter, and the latency buckets when enabled. A
// disabled Metrics yields empty, non-nil maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for id := range metricIDCount {
		if id != MetricRotateLatency {
			snap.Counters[id] = m.counters[id].Load()
		}
	}
	if m.latency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.rotate[i].Load()
		}
		snap.Histograms[MetricRotateLatency] = buckets
	}
	return snap
}
