// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/unioneyes/warden/pkg/contextkeys"
//	ctx = contextkeys.WithAccess(ctx, access)
//	access := ctx.Value(contextkeys.AccessKey).(*authz.Access)
//
// The setters take interface{} so this package stays import-cycle free;
// typed getters live next to the consumers (middleware.GetAccess,
// middleware.GetIdentity).
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AccessKey contains *authz.Access
	// Set by: Guard.Protect (pkg/middleware/guard.go)
	// Required by: handlers that assert extra privileges mid-request
	// Type: *authz.Access
	AccessKey Key = "access"

	// IdentityKey contains *identity.Identity
	// Set by: Guard.Protect and Guard.RequireAuth
	// Required by: display endpoints (/api/v1/me), audit enrichment
	// Type: *identity.Identity
	IdentityKey Key = "identity"
)

// WithAccess adds the authorization result to the context
func WithAccess(ctx context.Context, access interface{}) context.Context {
	return context.WithValue(ctx, AccessKey, access)
}

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}
