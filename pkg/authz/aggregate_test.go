package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

func assignment(role string, scopeType roles.ScopeType, scopeValue string) membership.RoleAssignment {
	return membership.RoleAssignment{
		ID:         "ra-" + role + "-" + string(scopeType),
		MemberID:   "mem-1",
		RoleID:     role,
		ScopeType:  scopeType,
		ScopeValue: scopeValue,
		IsActive:   true,
	}
}

func TestAggregate_Empty(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), nil)

	assert.Equal(t, 0, g.HighestLevel)
	assert.Empty(t, g.Permissions())
	assert.Empty(t, g.Roles())
	assert.False(t, g.Has(roles.PermissionProfileRead))
	assert.False(t, g.Wildcard())
}

func TestAggregate_SingleRole(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeGlobal, ""),
	})

	assert.Equal(t, 50, g.HighestLevel)
	assert.Equal(t, []string{roles.RoleSteward}, g.Roles())
	assert.True(t, g.Has(roles.PermissionGrievanceAssign))
	assert.False(t, g.Has(roles.PermissionCampaignSend))
	assert.False(t, g.Wildcard())
}

func TestAggregate_MultipleRolesUnion(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment(roles.RoleHealthSafetyRep, roles.ScopeDepartment, "plant_a"),
		assignment(roles.RoleMember, roles.ScopeGlobal, ""),
	})

	assert.Equal(t, 30, g.HighestLevel, "highest level wins across assignments")
	assert.Equal(t, []string{roles.RoleHealthSafetyRep, roles.RoleMember}, g.Roles())

	// Permissions union across both roles.
	assert.True(t, g.Has(roles.PermissionSafetyInspect))
	assert.True(t, g.Has(roles.PermissionVoteCast))
	assert.False(t, g.Has(roles.PermissionFinanceManage))
}

func TestAggregate_Wildcard(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment(roles.RoleSuperAdmin, roles.ScopeGlobal, ""),
	})

	assert.True(t, g.Wildcard())
	assert.True(t, g.Has("anything_at_all"))
	assert.True(t, g.Has(roles.PermissionFinanceManage))

	// The wildcard is never enumerated; Has answers for arbitrary strings
	// without it appearing in the list.
	assert.NotContains(t, g.Permissions(), roles.PermissionWildcard)
}

func TestAggregate_LegacyRoleName(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment("shop_steward", roles.ScopeGlobal, ""),
	})

	assert.Equal(t, 50, g.HighestLevel)
	assert.Equal(t, []string{roles.RoleSteward}, g.Roles())
	assert.True(t, g.Has(roles.PermissionGrievanceAssign))
}

func TestAggregate_UnknownRoleFallsBackToDefault(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment("grand_poobah", roles.ScopeGlobal, ""),
	})

	// Unknown role names normalize to the lowest-privilege default, so a
	// corrupt assignment never grants more than base membership.
	assert.Equal(t, 10, g.HighestLevel)
	assert.Equal(t, []string{roles.RoleMember}, g.Roles())
	assert.True(t, g.Has(roles.PermissionProfileRead))
	assert.False(t, g.Has(roles.PermissionMemberManage))
}

func TestAggregate_DuplicateAssignmentsDeduplicated(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeDepartment, "finance"),
		assignment(roles.RoleSteward, roles.ScopeDepartment, "hr"),
		assignment("union_rep", roles.ScopeGlobal, ""),
	})

	assert.Equal(t, []string{roles.RoleSteward}, g.Roles())
	assert.Equal(t, 50, g.HighestLevel)
}

func TestGrants_ZeroValue(t *testing.T) {
	var g Grants

	assert.False(t, g.Has(roles.PermissionProfileRead))
	assert.Equal(t, 0, g.HighestLevel)
	assert.Empty(t, g.Permissions())
	assert.Empty(t, g.Roles())
}

func TestGrants_PermissionsSorted(t *testing.T) {
	g := Aggregate(roles.DefaultCatalog(), []membership.RoleAssignment{
		assignment(roles.RoleTreasurer, roles.ScopeGlobal, ""),
	})

	perms := g.Permissions()
	require.NotEmpty(t, perms)
	for i := 1; i < len(perms); i++ {
		assert.Less(t, perms[i-1], perms[i])
	}
}
