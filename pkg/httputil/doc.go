// Package httputil provides shared helpers for the HTTP surface: JSON
// response writing, request parsing, and small route-level middleware.
//
// Error responses use the same single-field shape the authorization
// middleware writes:
//
//	{"error": "message"}
//
// so API clients parse one format no matter which layer rejected the
// request.
//
// # Responses
//
//	httputil.WriteSuccess(w, payload)
//	httputil.WriteBadRequest(w, "action is required")
//	httputil.WriteNotFoundError(w, "unknown role")
//
// # Request parsing
//
//	var req checkRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	limit, err := httputil.ParseQueryInt(r, "limit", 50)
//
// # Route middleware
//
//	handler = httputil.Chain(
//		httputil.ContentTypeJSON,
//		httputil.MaxBytes(1<<20),
//	)(handler)
//
// Authentication and authorization middleware live in pkg/middleware;
// this package carries no access policy.
package httputil
