// Package api assembles the HTTP surface of the authorization service.
//
// # Overview
//
// The Server mounts four groups of routes on a gorilla/mux router:
//
//   - /healthz and /readyz, the liveness and readiness probes
//   - /api/v1/me, the caller's resolved access context
//   - /api/v1/roles, the role catalog
//   - /api/v1/access/checks, requirement introspection
//
// and, when an audit store is wired, the audit search endpoints under
// /api/v1/audit. The Prometheus scrape endpoint is deliberately absent:
// it belongs on the operational listener, away from member traffic.
//
// # Middleware
//
// Every route runs inside the shared chain: OpenTelemetry tracing
// outermost, then request ID assignment, access logging, panic recovery,
// and request metrics. Authorization is per route: each protected route
// declares its Requirement and the guard runs the decision pipeline
// before the handler sees the request.
//
// # Access checks
//
// POST /api/v1/access/checks answers "could I do this" without doing it.
// The caller must authenticate, but the checked requirement's outcome is
// the response body:
//
//	{"allowed": false, "reason": "insufficient_authority_level"}
//
// A denied check is a 200. Error statuses are reserved for the caller's
// own authentication (401) and for infrastructure failures (503). Checks
// run the full decision pipeline and are audited like enforced decisions.
package api
