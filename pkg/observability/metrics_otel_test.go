package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// installManualReader swaps the global meter provider for one backed by a
// manual reader so tests can collect what the instruments recorded.
func installManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func histogramCount(t *testing.T, m metricdata.Metrics) uint64 {
	t.Helper()
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected float64 histogram for %s", m.Name)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count
}

func TestNewOTelMetrics(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)
}

// With no SDK installed the global meter is a no-op; recording must still
// be safe.
func TestOTelMetrics_NoopMeter(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/api/v1/me", 200, 5*time.Millisecond, 0, 128)
	m.RecordDecision(ctx, "allowed", "scoped_role", 2*time.Millisecond)
	m.RecordMembershipLookup(ctx, "ok", time.Millisecond)
	m.RecordAuditWrite(ctx, "recorder", "ok", time.Millisecond)
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	reader := installManualReader(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/api/v1/me", 200, 3*time.Millisecond, 0, 256)
	m.RecordHTTPRequest(ctx, "POST", "/api/v1/access/checks", 403, 7*time.Millisecond, 512, 64)

	rm := collectMetrics(t, reader)

	requests, ok := findMetric(rm, "http.server.requests")
	require.True(t, ok, "http.server.requests not recorded")
	assert.Equal(t, int64(2), sumValue(t, requests))

	duration, ok := findMetric(rm, "http.server.duration")
	require.True(t, ok)
	assert.Equal(t, uint64(2), histogramCount(t, duration))

	// Request size is only recorded when known; one of the two calls
	// carried a body.
	reqSize, ok := findMetric(rm, "http.server.request.size")
	require.True(t, ok)
	assert.Equal(t, uint64(1), histogramCount(t, reqSize))

	respSize, ok := findMetric(rm, "http.server.response.size")
	require.True(t, ok)
	assert.Equal(t, uint64(2), histogramCount(t, respSize))
}

func TestOTelMetrics_RecordDecision(t *testing.T) {
	reader := installManualReader(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDecision(ctx, "denied", "insufficient_level", 4*time.Millisecond)
	m.RecordDecision(ctx, "allowed", "scoped_role", 2*time.Millisecond)

	rm := collectMetrics(t, reader)

	decisions, ok := findMetric(rm, "authz.decisions")
	require.True(t, ok, "authz.decisions not recorded")
	assert.Equal(t, int64(2), sumValue(t, decisions))

	sum := decisions.Data.(metricdata.Sum[int64])
	foundDenied := false
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("authz.decision")); ok && v.AsString() == "denied" {
			foundDenied = true
			if reason, ok := dp.Attributes.Value(attribute.Key("authz.reason")); ok {
				assert.Equal(t, "insufficient_level", reason.AsString())
			} else {
				t.Error("denied data point missing authz.reason attribute")
			}
		}
	}
	assert.True(t, foundDenied, "no data point with authz.decision=denied")

	duration, ok := findMetric(rm, "authz.decision.duration")
	require.True(t, ok)
	assert.Equal(t, uint64(2), histogramCount(t, duration))
}

func TestOTelMetrics_RecordMembershipLookup(t *testing.T) {
	reader := installManualReader(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMembershipLookup(ctx, "ok", time.Millisecond)
	m.RecordMembershipLookup(ctx, "not_found", time.Millisecond)
	m.RecordMembershipLookup(ctx, "error", 2*time.Millisecond)

	rm := collectMetrics(t, reader)

	lookups, ok := findMetric(rm, "membership.lookups")
	require.True(t, ok)
	assert.Equal(t, int64(3), sumValue(t, lookups))

	duration, ok := findMetric(rm, "membership.lookup.duration")
	require.True(t, ok)
	assert.Equal(t, uint64(3), histogramCount(t, duration))
}

func TestOTelMetrics_RecordAuditWrite(t *testing.T) {
	reader := installManualReader(t)
	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAuditWrite(ctx, "recorder", "ok", time.Millisecond)
	m.RecordAuditWrite(ctx, "recorder", "error", time.Millisecond)

	rm := collectMetrics(t, reader)

	writes, ok := findMetric(rm, "audit.writes")
	require.True(t, ok)
	assert.Equal(t, int64(2), sumValue(t, writes))

	sum := writes.Data.(metricdata.Sum[int64])
	statuses := map[string]bool{}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("audit.status")); ok {
			statuses[v.AsString()] = true
		}
	}
	assert.True(t, statuses["ok"])
	assert.True(t, statuses["error"])

	duration, ok := findMetric(rm, "audit.write.duration")
	require.True(t, ok)
	assert.Equal(t, uint64(2), histogramCount(t, duration))
}
