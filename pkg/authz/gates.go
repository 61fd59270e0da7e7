package authz

import (
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

// The gates are the discrete checks the decision engine composes. Each is a
// pure function over already-resolved inputs, so they can be exercised
// directly in tests and reused by the assertion helpers without an engine.

// MeetsLevel reports whether the grants reach the minimum authority level.
func MeetsLevel(g Grants, minLevel int) bool {
	return g.HighestLevel >= minLevel
}

// HoldsPermission reports whether the grants include the permission or the
// universal wildcard.
func HoldsPermission(g Grants, perm roles.Permission) bool {
	return g.Has(perm)
}

// HoldsScopedRole reports whether any assignment grants the role within the
// required scope. The role may be a legacy spelling; an unknown role name
// matches nothing. A nil scope admits the role at any scope.
//
// Holding a higher-authority role does not substitute for the named one:
// this check binds an action to a held office, not to rank. Broad access
// for administrators flows through the wildcard permission instead.
func HoldsScopedRole(catalog *roles.Catalog, assignments []membership.RoleAssignment, role string, scope *ScopeRequirement) bool {
	if catalog == nil {
		catalog = roles.DefaultCatalog()
	}
	want, known := catalog.Resolve(role)
	if !known {
		return false
	}

	var holding []membership.RoleAssignment
	for _, a := range assignments {
		if catalog.Normalize(a.RoleID) == want {
			holding = append(holding, a)
		}
	}
	if len(holding) == 0 {
		return false
	}
	if scope == nil {
		return true
	}
	return CheckScope(holding, *scope).Allowed
}
