package otel

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[goSession.MetricID]uint64
	latency  []uint64
	dropped  uint64
	inline   uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := goSession.MetricsSnapshot{
		Counters:   maps.Clone(f.counters),
		Histograms: map[goSession.MetricID][]uint64{},
	}
	if snap.Counters == nil {
		snap.Counters = map[goSession.MetricID]uint64{}
	}
	if f.latency != nil {
		snap.Histograms[goSession.MetricRotateLatency] = append([]uint64(nil), f.latency...)
	}
	return snap
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) AuditInline() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inline
}

func newReader(t *testing.T, src metricsSource) (*sdkmetric.ManualReader, *Exporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := NewExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return reader, exp
}

// collect returns the single int64 value of every collected instrument.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) == 1 {
					out[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) == 1 {
					out[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	return out
}

func TestExporterReportsCountersAndBuckets(t *testing.T) {
	reader, _ := newReader(t, &fakeSource{
		counters: map[goSession.MetricID]uint64{
			goSession.MetricRefreshSuccess:       3,
			goSession.MetricRefreshReuseDetected: 4,
		},
		latency: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 2,
		inline:  1,
	})

	got := collect(t, reader)
	want := map[string]int64{
		"gosession_refresh_success_total":                  3,
		"gosession_refresh_reuse_detected_total":           4,
		"gosession_logout_total":                           0,
		"gosession_audit_dropped_total":                    2,
		"gosession_audit_inline_total":                     1,
		"gosession_rotate_latency_seconds_bucket_le_0_005": 1,
		"gosession_rotate_latency_seconds_bucket_le_0_1":   5,
		"gosession_rotate_latency_seconds_bucket_le_inf":   8,
		"gosession_rotate_latency_seconds_count":           8,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s = %d, want %d (all: %v)", name, got[name], v, got)
		}
	}
}

func TestExporterSkipsAbsentHistogram(t *testing.T) {
	reader, _ := newReader(t, &fakeSource{
		counters: map[goSession.MetricID]uint64{goSession.MetricRefreshReuseDetected: 4},
	})

	got := collect(t, reader)
	if got["gosession_refresh_reuse_detected_total"] != 4 {
		t.Fatalf("reuse counter = %d, want 4", got["gosession_refresh_reuse_detected_total"])
	}
	for name := range got {
		if strings.HasPrefix(name, "gosession_rotate_latency_seconds") {
			t.Fatalf("latency instrument %s observed without a histogram", name)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	meter := provider.Meter("gosession-test")

	if _, err := NewExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil source: got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("nil meter: got %v", err)
	}
	if _, err := NewExporter(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil engine: got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	src := &fakeSource{
		counters: map[goSession.MetricID]uint64{goSession.MetricRefreshSuccess: 1},
		latency:  []uint64{1, 0, 0, 0, 0, 0, 0, 0},
	}
	reader, _ := newReader(t, src)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goSession.MetricRefreshSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
