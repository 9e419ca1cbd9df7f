package observe

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestCounterIncrements(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesOffered.Add(ctx, 10)
	m.FramesAdmitted.Add(ctx, 2)
	m.Reconnects.Add(ctx, 1)

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"vocalytic.frames.offered", 10},
		{"vocalytic.frames.admitted", 2},
		{"vocalytic.stream.reconnects", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %s not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not a Sum[int64]", tc.name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			if total != tc.want {
				t.Errorf("%s = %d, want %d", tc.name, total, tc.want)
			}
		})
	}
}

func TestStreamMessageAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStreamMessage(ctx, "json")
	m.RecordStreamMessage(ctx, "json")
	m.RecordStreamMessage(ctx, "binary")

	rm := collect(t, reader)
	met := findMetric(rm, "vocalytic.stream.messages")
	if met == nil {
		t.Fatal("metric vocalytic.stream.messages not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("vocalytic.stream.messages is not a Sum[int64]")
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("got %d data points, want 2 (one per kind)", len(sum.DataPoints))
	}
}

func TestRecordUpload(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUpload(ctx, 0.25, nil)
	m.RecordUpload(ctx, 1.5, errors.New("backend rejected"))

	rm := collect(t, reader)

	dur := findMetric(rm, "vocalytic.upload.duration")
	if dur == nil {
		t.Fatal("metric vocalytic.upload.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("vocalytic.upload.duration is not a Histogram[float64]")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("upload duration count = %d, want 2", count)
	}

	errMet := findMetric(rm, "vocalytic.upload.errors")
	if errMet == nil {
		t.Fatal("metric vocalytic.upload.errors not found")
	}
	errSum := errMet.Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range errSum.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("upload errors = %d, want 1", total)
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "vocalytic.active_sessions")
	if met == nil {
		t.Fatal("metric vocalytic.active_sessions not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("vocalytic.active_sessions is not a Sum[int64]")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("active sessions = %d, want 1", total)
	}
}
