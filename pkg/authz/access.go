package authz

import (
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

// Access is the resolved authorization context handed to a protected
// operation after a decision allows it: the authenticated identity, the
// member record, the active assignments, and the merged grants. It is
// computed fresh for every request from current assignments and is never
// cached across requests.
type Access struct {
	Identity    identity.Identity
	Member      membership.Member
	Assignments []membership.RoleAssignment
	Grants      Grants

	catalog *roles.Catalog
}

// NewAccess assembles an Access against the given catalog. The engine
// builds Access values itself; this exists for tests and for callers
// composing the gates directly. A nil catalog uses the built-in one.
func NewAccess(catalog *roles.Catalog, ident identity.Identity, m membership.Membership) *Access {
	if catalog == nil {
		catalog = roles.DefaultCatalog()
	}
	return &Access{
		Identity:    ident,
		Member:      m.Member,
		Assignments: m.Assignments,
		Grants:      Aggregate(catalog, m.Assignments),
		catalog:     catalog,
	}
}

// Level returns the highest authority level held.
func (a *Access) Level() int { return a.Grants.HighestLevel }

// Roles returns the canonical role identifiers held.
func (a *Access) Roles() []string { return a.Grants.Roles() }

// HasPermission reports whether the permission is granted.
func (a *Access) HasPermission(perm roles.Permission) bool { return a.Grants.Has(perm) }

// HasScopedRole reports whether the member holds the role within the scope.
// Legacy role spellings are accepted.
func (a *Access) HasScopedRole(role string, scope ScopeRequirement) bool {
	return HoldsScopedRole(a.roleCatalog(), a.Assignments, role, &scope)
}

// CheckScope reports which held assignments satisfy the scope requirement,
// regardless of role.
func (a *Access) CheckScope(scope ScopeRequirement) ScopeMatch {
	return CheckScope(a.Assignments, scope)
}

func (a *Access) roleCatalog() *roles.Catalog {
	if a.catalog != nil {
		return a.catalog
	}
	return roles.DefaultCatalog()
}
