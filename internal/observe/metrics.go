// Package observe provides observability primitives for the Samvaad server:
// OpenTelemetry metrics with a Prometheus exporter bridge and HTTP middleware
// that records request latency.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Samvaad metrics.
const meterName = "github.com/ldrpitr/samvaad"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks outbound answer-service latency. Use with
	// attribute.String("mode", "student"|"agent").
	DispatchDuration metric.Float64Histogram

	// QueryRequests counts answer-service dispatches, same attributes as
	// DispatchDuration.
	QueryRequests metric.Int64Counter

	// QueryErrors counts failed dispatches (transport or non-2xx).
	QueryErrors metric.Int64Counter

	// Turns counts transcript messages. Use with attributes:
	//   attribute.String("origin", ...), attribute.String("kind", ...)
	Turns metric.Int64Counter

	// Corrections counts typo corrections that changed the user's text.
	Corrections metric.Int64Counter

	// Drafts counts email draft requests. Use with
	// attribute.String("source", "model"|"fallback").
	Drafts metric.Int64Counter

	// ActiveSessions tracks the number of open conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// retrieval-service round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.DispatchDuration, err = meter.Float64Histogram(
		"samvaad.dispatch.duration",
		metric.WithDescription("Answer-service dispatch latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if m.QueryRequests, err = meter.Int64Counter(
		"samvaad.dispatch.requests",
		metric.WithDescription("Answer-service dispatches"),
	); err != nil {
		return nil, err
	}
	if m.QueryErrors, err = meter.Int64Counter(
		"samvaad.dispatch.errors",
		metric.WithDescription("Failed answer-service dispatches"),
	); err != nil {
		return nil, err
	}
	if m.Turns, err = meter.Int64Counter(
		"samvaad.transcript.turns",
		metric.WithDescription("Transcript messages appended"),
	); err != nil {
		return nil, err
	}
	if m.Corrections, err = meter.Int64Counter(
		"samvaad.corrector.corrections",
		metric.WithDescription("Free-text submissions changed by the typo corrector"),
	); err != nil {
		return nil, err
	}
	if m.Drafts, err = meter.Int64Counter(
		"samvaad.draft.requests",
		metric.WithDescription("Email draft requests"),
	); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter(
		"samvaad.sessions.active",
		metric.WithDescription("Open conversation sessions"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"samvaad.http.request.duration",
		metric.WithDescription("HTTP request processing time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
	defaultErr     error
)

// DefaultMetrics returns the process-wide [Metrics] built on the global
// meter provider. The first call wins; later provider changes are not
// picked up.
func DefaultMetrics() (*Metrics, error) {
	defaultOnce.Do(func() {
		defaultMetrics, defaultErr = NewMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics, defaultErr
}
