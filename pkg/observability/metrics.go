package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization decision metrics
	DecisionsTotal    *prometheus.CounterVec
	DecisionDuration  *prometheus.HistogramVec
	GateFailuresTotal *prometheus.CounterVec

	// Membership resolution metrics
	MembershipLookupsTotal   *prometheus.CounterVec
	MembershipLookupDuration prometheus.Histogram

	// Role catalog metrics
	CatalogFileChanges prometheus.Counter

	// Identity metrics
	TokenVerificationsTotal *prometheus.CounterVec
	ProfileCacheHitsTotal   prometheus.Counter
	ProfileCacheMissesTotal prometheus.Counter

	// Audit sink metrics
	AuditRecordsTotal    *prometheus.CounterVec
	AuditWriteDuration   *prometheus.HistogramVec
	AuditFailuresTotal   *prometheus.CounterVec
	AuditRecordsPurged   prometheus.Counter
	AuditRecordsArchived prometheus.Counter

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Authorization decision metrics
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"decision", "reason"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"decision"},
		),
		GateFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_gate_failures_total",
				Help: "Total number of authorization gate failures",
			},
			[]string{"gate"},
		),

		// Membership resolution metrics
		MembershipLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_membership_lookups_total",
				Help: "Total number of membership lookups",
			},
			[]string{"status"},
		),
		MembershipLookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_membership_lookup_duration_seconds",
				Help:    "Membership lookup duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),

		// Role catalog metrics
		CatalogFileChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_catalog_file_changes_total",
				Help: "Total number of role catalog file change events observed",
			},
		),

		// Identity metrics
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_token_verifications_total",
				Help: "Total number of bearer token verifications",
			},
			[]string{"status"},
		),
		ProfileCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_profile_cache_hits_total",
				Help: "Total number of profile cache hits",
			},
		),
		ProfileCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_profile_cache_misses_total",
				Help: "Total number of profile cache misses",
			},
		),

		// Audit sink metrics
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_audit_records_total",
				Help: "Total number of audit records written",
			},
			[]string{"sink", "status"},
		),
		AuditWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_audit_write_duration_seconds",
				Help:    "Audit record write duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"sink"},
		),
		AuditFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_audit_failures_total",
				Help: "Total number of audit sink failures",
			},
			[]string{"sink"},
		),
		AuditRecordsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_records_purged_total",
				Help: "Total number of audit records purged by retention",
			},
		),
		AuditRecordsArchived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_records_archived_total",
				Help: "Total number of audit records archived",
			},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.GateFailuresTotal,
		m.MembershipLookupsTotal,
		m.MembershipLookupDuration,
		m.CatalogFileChanges,
		m.TokenVerificationsTotal,
		m.ProfileCacheHitsTotal,
		m.ProfileCacheMissesTotal,
		m.AuditRecordsTotal,
		m.AuditWriteDuration,
		m.AuditFailuresTotal,
		m.AuditRecordsPurged,
		m.AuditRecordsArchived,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
	)

	return m
}

// CollectDBStats copies connection pool stats from the database handle
// into the gauges. Call it periodically from the serving binary.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the Prometheus scrape handler for a registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", MetricsHandler(registry))
}
