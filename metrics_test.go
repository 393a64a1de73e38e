package goSession

import (
	"testing"
	"time"
)

func TestMetricsDisabledIgnoresUpdates(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRefreshSuccess)
	if m.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("disabled metrics recorded a value")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	nilMetrics.Observe(MetricRotateLatency, time.Millisecond)
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricRotateLatency, 3*time.Millisecond)
	m.Observe(MetricRotateLatency, 40*time.Millisecond)
	m.Observe(MetricRotateLatency, 2*time.Second)
	m.Observe(MetricRefreshSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRotateLatency]
	if len(buckets) != latencyBucketCount || len(buckets) != len(LatencyBounds())+1 {
		t.Fatalf("expected %d buckets, got %d", latencyBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
	if _, ok := snap.Histograms[MetricRefreshSuccess]; ok {
		t.Fatal("counter ids must not carry histograms")
	}
}

func TestLatencyBucketEdges(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 400*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		if got := latencyBucket(tc.d); got != tc.want {
			t.Errorf("latencyBucket(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricIDNames(t *testing.T) {
	seen := map[string]bool{}
	for id := range metricIDCount {
		name := id.String()
		if name == "" || name == "unknown" || seen[name] {
			t.Fatalf("metric %d has bad or duplicate name %q", id, name)
		}
		seen[name] = true
	}
	if metricIDCount.String() != "unknown" {
		t.Fatal("out of range id must be unknown")
	}
	if MetricRefreshReuseDetected.String() != "refresh_reuse_detected" {
		t.Fatalf("unexpected name %q", MetricRefreshReuseDetected.String())
	}
}
