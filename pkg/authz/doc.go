// Package authz evaluates authorization decisions for protected
// operations.
//
// # Overview
//
// The Engine walks a fixed pipeline per request: authenticate the caller,
// resolve their membership and active role assignments in the target
// organization, aggregate those assignments into Grants, then apply the
// gates the Requirement names. Passing every gate yields an Access value
// for the protected operation; any failure yields a typed error. Each
// decision writes exactly one audit record before control returns.
//
// # Gates
//
// Three gates compose, each a pure function usable on its own:
//
//	MeetsLevel: highest authority level reaches a minimum
//	HoldsPermission: permission granted literally or via the wildcard
//	HoldsScopedRole: a named role held within a required scope
//
// Globally scoped assignments satisfy any narrower scope requirement
// unless the requirement disables the bypass.
//
// # Errors
//
// Denials surface as *DeniedError carrying the audit reason code: 401 for
// a missing or invalid identity, 403 after authentication. Collaborator
// failures surface as *InfrastructureError (503) and are never softened
// into denials or, worse, into access: the pipeline fails closed.
//
// # Usage Example
//
//	engine, err := authz.New(authz.Config{
//		Identity:   provider,
//		Membership: resolver,
//		Recorder:   recorder,
//	})
//
//	acc, err := engine.Authorize(r.Context(), r, authz.Requirement{
//		Action:     "grievance:escalate",
//		MinLevel:   50,
//		Permission: roles.PermissionGrievanceEscalate,
//	})
//
// Inside an already-authorized handler, secondary checks use the
// assertion helpers, which audit their own failures:
//
//	if err := engine.AssertScopedRole(ctx, acc, roles.RoleSteward,
//		authz.Scope(roles.ScopeDepartment, dept), "grievance:assign"); err != nil {
//		return err
//	}
//
// # Related Packages
//
//   - pkg/roles: the role catalog consulted for levels and permissions
//   - pkg/membership: resolves members and assignments
//   - pkg/audit: persists decision records
//   - pkg/middleware: HTTP adapters over the engine
package authz
