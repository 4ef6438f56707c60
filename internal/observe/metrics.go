// Package observe provides application-wide observability primitives for
// voxcall: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all voxcall metrics.
const meterName = "github.com/acoustad/voxcall"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// AudioFramesSent counts outbound audio frames.
	AudioFramesSent metric.Int64Counter

	// AudioBytesSent counts outbound encoded audio bytes.
	AudioBytesSent metric.Int64Counter

	// InboundEvents counts routed inbound events. Use with attribute:
	//   attribute.String("kind", ...)
	InboundEvents metric.Int64Counter

	// Reconnects counts scheduled reconnect attempts. Use with attribute:
	//   attribute.Int("attempt", ...)
	Reconnects metric.Int64Counter

	// --- Histograms ---

	// CallDuration tracks the wall-clock length of completed calls.
	CallDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveCalls tracks the number of calls currently in progress.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin endpoint request processing time. Use
	// with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// callBuckets defines histogram bucket boundaries (in seconds) for call
// durations, from short probes up to hour-long conversations.
var callBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.AudioFramesSent, err = m.Int64Counter("voxcall.audio.frames_sent",
		metric.WithDescription("Total outbound audio frames."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesSent, err = m.Int64Counter("voxcall.audio.bytes_sent",
		metric.WithDescription("Total outbound encoded audio bytes."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.InboundEvents, err = m.Int64Counter("voxcall.events.inbound",
		metric.WithDescription("Total routed inbound events by kind."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("voxcall.reconnects",
		metric.WithDescription("Total scheduled reconnect attempts."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.CallDuration, err = m.Float64Histogram("voxcall.call.duration",
		metric.WithDescription("Wall-clock duration of completed calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("voxcall.active_calls",
		metric.WithDescription("Number of calls currently in progress."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxcall.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordInboundEvent records an inbound event counter increment with the
// standard kind attribute.
func (m *Metrics) RecordInboundEvent(ctx context.Context, kind string) {
	m.InboundEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordReconnect records a scheduled reconnect attempt.
func (m *Metrics) RecordReconnect(ctx context.Context, attempt int) {
	m.Reconnects.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("attempt", attempt)),
	)
}
