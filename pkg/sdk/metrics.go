package sdk

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes recorded by GatewayMetrics.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeAPIError     = "api_error"
	OutcomeNetworkError = "network_error"
	OutcomeAborted      = "aborted"
)

// Common metric attribute keys for gateway telemetry
const (
	AttrHTTPMethod = "http.method"
	AttrResource   = "spearhead.resource"
	AttrOutcome    = "spearhead.outcome"
)

// GatewayMetrics holds metric instruments for outgoing backend requests.
// Instruments come from the global meter provider, so they are no-ops until
// the host application installs one.
type GatewayMetrics struct {
	RequestCounter  metric.Int64Counter     // Total backend requests
	RequestDuration metric.Float64Histogram // Request latency
	FailureCounter  metric.Int64Counter     // Requests that did not end in 2xx
	Unauthorized    metric.Int64Counter     // 401 responses (forced logouts)
}

// NewGatewayMetrics creates the gateway instruments.
func NewGatewayMetrics() (*GatewayMetrics, error) {
	meter := otel.Meter("spearhead/gateway")

	requestCounter, err := meter.Int64Counter(
		"gateway.request.count",
		metric.WithDescription("Total number of backend requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 10ms .. 10s, the dashboard tolerates slow exports
	requestDuration, err := meter.Float64Histogram(
		"gateway.request.duration",
		metric.WithDescription("Backend request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, err
	}

	failureCounter, err := meter.Int64Counter(
		"gateway.request.failure.count",
		metric.WithDescription("Total number of backend requests that failed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	unauthorized, err := meter.Int64Counter(
		"gateway.unauthorized.count",
		metric.WithDescription("Total number of 401 responses"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		FailureCounter:  failureCounter,
		Unauthorized:    unauthorized,
	}, nil
}

// RecordRequest records one request with its method, resource, outcome and duration.
func (m *GatewayMetrics) RecordRequest(ctx context.Context, method, resource, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrResource, resource),
		attribute.String(AttrOutcome, outcome),
	)

	// Metrics must be recorded even when the request context is gone.
	ctx = context.WithoutCancel(ctx)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if outcome != OutcomeOK {
		m.FailureCounter.Add(ctx, 1, attrs)
	}
	if outcome == OutcomeUnauthorized {
		m.Unauthorized.Add(ctx, 1, attrs)
	}
}
