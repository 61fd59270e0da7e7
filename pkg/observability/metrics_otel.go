package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments for the decision
// path. They are recorded alongside the Prometheus metrics when an OTLP
// collector is configured; without InitOTel the global meter is a no-op
// and recording costs nothing.
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpRequestSize     metric.Int64Histogram
	httpResponseSize    metric.Int64Histogram

	// Authorization decision metrics
	decisionsTotal   metric.Int64Counter
	decisionDuration metric.Float64Histogram

	// Membership resolution metrics
	membershipLookupsTotal   metric.Int64Counter
	membershipLookupDuration metric.Float64Histogram

	// Audit sink metrics
	auditWritesTotal   metric.Int64Counter
	auditWriteDuration metric.Float64Histogram
}

// NewOTelMetrics creates the OTel instruments on the global meter.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/unioneyes/warden")

	m := &OTelMetrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	m.httpRequestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request size histogram: %w", err)
	}

	m.httpResponseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http response size histogram: %w", err)
	}

	m.decisionsTotal, err = meter.Int64Counter(
		"authz.decisions",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	m.decisionDuration, err = meter.Float64Histogram(
		"authz.decision.duration",
		metric.WithDescription("Authorization decision duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision duration histogram: %w", err)
	}

	m.membershipLookupsTotal, err = meter.Int64Counter(
		"membership.lookups",
		metric.WithDescription("Total number of membership lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership lookups counter: %w", err)
	}

	m.membershipLookupDuration, err = meter.Float64Histogram(
		"membership.lookup.duration",
		metric.WithDescription("Membership lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership lookup duration histogram: %w", err)
	}

	m.auditWritesTotal, err = meter.Int64Counter(
		"audit.writes",
		metric.WithDescription("Total number of audit record writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit writes counter: %w", err)
	}

	m.auditWriteDuration, err = meter.Float64Histogram(
		"audit.write.duration",
		metric.WithDescription("Audit record write duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit write duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if requestSize > 0 {
		m.httpRequestSize.Record(ctx, requestSize, metric.WithAttributes(attrs...))
	}
	if responseSize > 0 {
		m.httpResponseSize.Record(ctx, responseSize, metric.WithAttributes(attrs...))
	}
}

// RecordDecision records the outcome and latency of an authorization
// decision.
func (m *OTelMetrics) RecordDecision(ctx context.Context, decision, reason string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("authz.decision", decision),
		attribute.String("authz.reason", reason),
	}

	m.decisionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.decisionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("authz.decision", decision)))
}

// RecordMembershipLookup records a membership store round trip.
func (m *OTelMetrics) RecordMembershipLookup(ctx context.Context, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("membership.status", status),
	}

	m.membershipLookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.membershipLookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAuditWrite records an audit sink write.
func (m *OTelMetrics) RecordAuditWrite(ctx context.Context, sink, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("audit.sink", sink),
		attribute.String("audit.status", status),
	}

	m.auditWritesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.auditWriteDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("audit.sink", sink)))
}
