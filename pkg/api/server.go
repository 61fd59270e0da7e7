package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/authz"
	"github.com/unioneyes/warden/pkg/httputil"
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/middleware"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

// Server is the HTTP surface of the authorization service: health probes,
// the caller's resolved access context, the role catalog, access-check
// introspection, and the audit search endpoints.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	engine   *authz.Engine
	guard    *middleware.Guard
	provider identity.Provider
	health   *observability.HealthChecker
	logger   *observability.Logger
}

// Config carries the server's dependencies. Engine and Provider are
// required; the rest may be nil.
type Config struct {
	Engine   *authz.Engine
	Provider identity.Provider

	// Health backs /healthz and /readyz. Nil installs a checker with no
	// dependencies, which always reports ready.
	Health *observability.HealthChecker

	// AuditStore enables the audit search endpoints when set.
	AuditStore audit.Store

	// Metrics feeds the Prometheus HTTP middleware. The scrape endpoint
	// itself is served on the operational listener, not this router.
	Metrics *observability.Metrics

	// OTel mirrors request telemetry to OpenTelemetry when set.
	OTel *observability.OTelMetrics

	Logger *observability.Logger
}

// NewServer wires the router, the shared middleware chain, and the routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("api: engine is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("api: identity provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	health := cfg.Health
	if health == nil {
		health = observability.NewHealthChecker(nil, nil, "")
	}

	s := &Server{
		router:   mux.NewRouter(),
		engine:   cfg.Engine,
		guard:    middleware.NewGuard(cfg.Engine, cfg.Provider, logger),
		provider: cfg.Provider,
		health:   health,
		logger:   logger,
	}
	s.setupRoutes(cfg.AuditStore)
	s.handler = buildChain(s.router, logger, cfg.Metrics, cfg.OTel)
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(auditStore audit.Store) {
	// Health probes stay outside /api/v1 and outside the guard
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Caller's resolved standing. Any active member may ask.
	api.Handle("/me", s.guard.Protect(authz.Requirement{
		Action: "me:view",
	})(http.HandlerFunc(s.me))).Methods("GET")

	// Role catalog
	catalogGate := s.guard.Protect(authz.Requirement{
		Action:       "roles:list",
		ResourceType: "role",
		Permission:   roles.PermissionRoleRead,
	})
	api.Handle("/roles", catalogGate(http.HandlerFunc(s.listRoles))).Methods("GET")
	api.Handle("/roles/{id}", catalogGate(http.HandlerFunc(s.getRole))).Methods("GET")

	// Access-check introspection. Authentication is the only gate; the
	// outcome of the checked requirement is the response body, not the
	// response status.
	api.Handle("/access/checks", httputil.Chain(
		httputil.ContentTypeJSON,
		httputil.MaxBytes(1<<20),
	)(s.guard.RequireAuth(http.HandlerFunc(s.accessCheck)))).Methods("POST")

	// Audit search endpoints, registered only when a store is wired
	if auditStore != nil {
		auditAPI := s.router.PathPrefix("/api/v1").Subrouter()
		auditAPI.Use(s.guard.Protect(authz.Requirement{
			Action:       "audit:read",
			ResourceType: "audit",
			Permission:   roles.PermissionAuditRead,
			Sensitive:    true,
		}))
		audit.NewHandlers(auditStore).RegisterRoutes(auditAPI)
	}
}

// buildChain assembles the shared middleware around the router. Tracing
// wraps the whole chain so access logs and audit records can carry trace
// ids; the guard runs per route inside it.
func buildChain(router http.Handler, logger *observability.Logger, metrics *observability.Metrics, otelMetrics *observability.OTelMetrics) http.Handler {
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery(logger),
	}
	if metrics != nil {
		mws = append(mws, observability.HTTPMetricsMiddleware(metrics))
	}
	mws = append(mws, middleware.Telemetry(otelMetrics))

	chain := httputil.Chain(mws...)(router)
	return otelhttp.NewHandler(chain, "warden.http",
		otelhttp.WithSpanNameFormatter(spanName))
}

func spanName(operation string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is implemented by handler groups that mount their own
// routes, such as the audit search handlers.
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}
