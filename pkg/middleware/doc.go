// Package middleware provides HTTP middleware for request identity, route
// protection, logging, and recovery.
//
// # Overview
//
// This package wires the decision engine into the HTTP layer. Routes are
// protected declaratively: each one states its Requirement, the Guard runs
// the full decision pipeline, and handlers receive the resolved Access via
// the request context.
//
// # Middleware Components
//
// RequestID: request ID assignment
//
//	router.Use(middleware.RequestID)
//	// Reuses X-Request-ID when a gateway set one, generates otherwise
//
// Guard: route protection
//
//	guard := middleware.NewGuard(engine, provider, logger)
//	router.Handle("/grievances", guard.RequirePermission("grievance:read")(h))
//	router.Handle("/officers", guard.RequireLevel(60)(h))
//	router.Handle("/stewards/plant-a", guard.RequireScopedRole("union_steward",
//	    &authz.ScopeRequirement{Type: roles.ScopeWorksite, Value: "plant-a"})(h))
//
// Handlers read the decision with GetAccess:
//
//	access := middleware.GetAccess(r)
//	if err := engine.AssertLevel(r.Context(), access, 80, "member:purge"); err != nil {
//	    // typed *authz.DeniedError, already audited
//	}
//
// Logging: one access log line per request, request-scoped logger in context
//
//	router.Use(middleware.Logging(logger))
//
// Recovery: handler panics become 500 responses
//
//	router.Use(middleware.Recovery(logger))
//
// # Ordering
//
// Outer to inner: RequestID, Logging, Recovery, Telemetry, then Guard
// wrappers per route. RequestID must run before Logging so the access log
// carries the ID; Guard must run innermost so denials are logged and
// counted like any other response.
//
// # Related Packages
//
//   - pkg/authz: Decision engine and typed errors
//   - pkg/identity: Bearer token verification
//   - pkg/contextkeys: Context key definitions
package middleware
