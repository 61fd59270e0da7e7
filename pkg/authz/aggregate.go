package authz

import (
	"sort"

	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

// Grants is the merged privilege snapshot computed from a member's active
// role assignments: the highest authority level held, the union of every
// granted permission, and the canonical roles that produced them. The zero
// value grants nothing.
type Grants struct {
	HighestLevel int

	permissions map[roles.Permission]struct{}
	wildcard    bool
	roleIDs     []string
}

// Aggregate merges the assignments against the catalog. Each assignment's
// role is normalized first, so legacy spellings contribute their canonical
// role's level and permissions. An empty assignment list yields level 0 and
// an empty permission set, which every gate denies.
func Aggregate(catalog *roles.Catalog, assignments []membership.RoleAssignment) Grants {
	g := Grants{permissions: make(map[roles.Permission]struct{})}

	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		id := catalog.Normalize(a.RoleID)
		if level := catalog.Level(id); level > g.HighestLevel {
			g.HighestLevel = level
		}
		for _, perm := range catalog.Permissions(id) {
			if perm == roles.PermissionWildcard {
				g.wildcard = true
				continue
			}
			g.permissions[perm] = struct{}{}
		}
		if !seen[id] {
			seen[id] = true
			g.roleIDs = append(g.roleIDs, id)
		}
	}
	sort.Strings(g.roleIDs)
	return g
}

// Has reports whether the permission is granted, honoring the wildcard.
func (g Grants) Has(perm roles.Permission) bool {
	if g.wildcard {
		return true
	}
	return g.hasDirect(perm)
}

// hasDirect ignores the wildcard; the engine uses it to distinguish a grant
// through the wildcard from a literally held permission in audit records.
func (g Grants) hasDirect(perm roles.Permission) bool {
	_, ok := g.permissions[perm]
	return ok
}

// Wildcard reports whether any role granted the universal permission.
func (g Grants) Wildcard() bool { return g.wildcard }

// Permissions returns the enumerable granted permissions in sorted order.
// The wildcard is reported by Wildcard, never enumerated: Has answers for
// arbitrary permission strings without them appearing here.
func (g Grants) Permissions() []roles.Permission {
	perms := make([]roles.Permission, 0, len(g.permissions))
	for perm := range g.permissions {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// Roles returns the canonical role identifiers, deduplicated and sorted.
func (g Grants) Roles() []string {
	ids := make([]string, len(g.roleIDs))
	copy(ids, g.roleIDs)
	return ids
}
