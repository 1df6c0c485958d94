package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncRespectsEnabled(t *testing.T) {
	for _, tc := range []struct {
		enabled bool
		want    uint64
	}{
		{enabled: false, want: 0},
		{enabled: true, want: 3},
	} {
		m := NewMetrics(MetricsConfig{Enabled: tc.enabled})
		for range 3 {
			m.Inc(MetricLoginSuccess)
		}
		if got := m.Value(MetricLoginSuccess); got != tc.want {
			t.Fatalf("enabled=%v: expected %d, got %d", tc.enabled, tc.want, got)
		}
	}
}

func TestMetricsIncIgnoresHistogramAndUnknownIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricValidateLatency)
	m.Inc(metricIDCount + 3)

	if got := m.Value(MetricValidateLatency); got != 0 {
		t.Fatalf("histogram id must not count, got %d", got)
	}
	if got := m.Value(metricIDCount + 3); got != 0 {
		t.Fatalf("unknown id must read 0, got %d", got)
	}
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricValidateLatency, time.Millisecond)
	if nilMetrics.Enabled() || len(nilMetrics.Snapshot().Counters) != 0 {
		t.Fatal("nil metrics must behave as disabled")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	const workers, perWorker = 32, 4000
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				m.Inc(MetricRefreshSuccess)
			}
		})
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		if got := latencyBucket(tc.d); got != tc.bucket {
			t.Fatalf("latencyBucket(%v) = %d, want %d", tc.d, got, tc.bucket)
		}
	}

	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, ms := range []int{5, 10, 25, 50, 100, 250, 500, 700} {
		m.Observe(MetricValidateLatency, time.Duration(ms)*time.Millisecond)
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	if len(snap.Counters) != int(MetricValidateLatency) {
		t.Fatalf("expected every counter id present, got %d", len(snap.Counters))
	}
	if _, ok := snap.Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent without latency enabled")
	}

	off := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	off.Inc(MetricLoginSuccess)
	off.Observe(MetricValidateLatency, time.Millisecond)
	if snap := off.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if off.LatencyEnabled() {
		t.Fatal("latency must require metrics to be enabled")
	}
}

func TestEngineValidateRecordsLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _, _ := newTestEngine(t, cfg)
	res := mustRegister(t, engine, "a@x.com", "secret1")

	if _, err := engine.ValidateToken(res.AccessToken); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if _, err := engine.ValidateToken("garbage"); err == nil {
		t.Fatalf("expected validate failure")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricValidateSuccess] != 1 || snap.Counters[MetricValidateFailure] != 1 {
		t.Fatalf("unexpected validate counters %+v", snap.Counters)
	}
	var total uint64
	for _, v := range snap.Histograms[MetricValidateLatency] {
		total += v
	}
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatalf("histogram id must not appear as a counter")
	}
}
