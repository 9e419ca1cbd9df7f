// Package observe provides application-wide observability primitives for
// vocalytic: OpenTelemetry metrics, structured logging helpers, and the
// provider bootstrap that bridges them to Prometheus.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all vocalytic metrics.
const meterName = "github.com/hfleisch/vocalytic"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use, the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscodeDuration tracks recording-to-WAV transcode latency.
	TranscodeDuration metric.Float64Histogram

	// UploadDuration tracks artifact upload latency.
	UploadDuration metric.Float64Histogram

	// --- Counters ---

	// FramesOffered counts analysis frames presented to the sampler.
	FramesOffered metric.Int64Counter

	// FramesAdmitted counts frames the sampler forwarded to the backend.
	FramesAdmitted metric.Int64Counter

	// Reconnects counts unplanned connection losses that triggered a
	// reconnection attempt.
	Reconnects metric.Int64Counter

	// SegmentsCut counts recording segments produced by the recorder.
	SegmentsCut metric.Int64Counter

	// StreamMessages counts inbound stream messages. Use with attribute:
	//   attribute.String("kind", ...)
	StreamMessages metric.Int64Counter

	// --- Error counters ---

	// UploadErrors counts failed artifact uploads.
	UploadErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live coaching sessions.
	ActiveSessions metric.Int64UpDownCounter

	// InputLevel reports the most recent RMS microphone level.
	InputLevel metric.Float64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcode and upload latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscodeDuration, err = m.Float64Histogram("vocalytic.transcode.duration",
		metric.WithDescription("Latency of recording transcode to canonical WAV."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadDuration, err = m.Float64Histogram("vocalytic.upload.duration",
		metric.WithDescription("Latency of artifact uploads to the backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesOffered, err = m.Int64Counter("vocalytic.frames.offered",
		metric.WithDescription("Total analysis frames presented to the sampler."),
	); err != nil {
		return nil, err
	}
	if met.FramesAdmitted, err = m.Int64Counter("vocalytic.frames.admitted",
		metric.WithDescription("Total analysis frames forwarded to the backend."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("vocalytic.stream.reconnects",
		metric.WithDescription("Total reconnection attempts after unplanned connection loss."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsCut, err = m.Int64Counter("vocalytic.record.segments",
		metric.WithDescription("Total recording segments produced."),
	); err != nil {
		return nil, err
	}
	if met.StreamMessages, err = m.Int64Counter("vocalytic.stream.messages",
		metric.WithDescription("Total inbound stream messages by kind."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.UploadErrors, err = m.Int64Counter("vocalytic.upload.errors",
		metric.WithDescription("Total failed artifact uploads."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("vocalytic.active_sessions",
		metric.WithDescription("Number of live coaching sessions."),
	); err != nil {
		return nil, err
	}
	if met.InputLevel, err = m.Float64Gauge("vocalytic.input.level",
		metric.WithDescription("Most recent RMS microphone input level."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStreamMessage records an inbound message counter increment with the
// standard attribute set.
func (m *Metrics) RecordStreamMessage(ctx context.Context, kind string) {
	m.StreamMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordUpload records an upload duration sample and, when the upload failed,
// an error counter increment.
func (m *Metrics) RecordUpload(ctx context.Context, seconds float64, err error) {
	m.UploadDuration.Record(ctx, seconds)
	if err != nil {
		m.UploadErrors.Add(ctx, 1)
	}
}
