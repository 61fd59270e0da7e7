package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

func TestCheckScope_GlobalBypass(t *testing.T) {
	assignments := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeGlobal, ""),
	}

	match := CheckScope(assignments, Scope(roles.ScopeDepartment, "finance"))
	assert.True(t, match.Allowed, "global assignment satisfies any narrower scope")
	require.Len(t, match.Matching, 1)
	assert.Equal(t, roles.ScopeGlobal, match.Matching[0].ScopeType)
}

func TestCheckScope_ExactValue(t *testing.T) {
	assignments := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeDepartment, "finance"),
	}

	assert.True(t, CheckScope(assignments, Scope(roles.ScopeDepartment, "finance")).Allowed)
	assert.False(t, CheckScope(assignments, Scope(roles.ScopeDepartment, "hr")).Allowed)
	assert.False(t, CheckScope(assignments, Scope(roles.ScopeWorksite, "finance")).Allowed)
}

func TestCheckScope_AnyValueOfType(t *testing.T) {
	assignments := []membership.RoleAssignment{
		assignment(roles.RoleCommitteeChair, roles.ScopeCommittee, "bargaining"),
	}

	match := CheckScope(assignments, Scope(roles.ScopeCommittee, ""))
	assert.True(t, match.Allowed, "empty required value accepts any value of the type")
}

func TestCheckScope_WithoutGlobal(t *testing.T) {
	global := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeGlobal, ""),
	}

	req := Scope(roles.ScopeDepartment, "finance").WithoutGlobal()
	assert.False(t, CheckScope(global, req).Allowed, "bypass disabled, global no longer matches")

	scoped := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeDepartment, "finance"),
	}
	assert.True(t, CheckScope(scoped, req).Allowed)
}

func TestCheckScope_PluralMatches(t *testing.T) {
	assignments := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeDepartment, "finance"),
		assignment(roles.RoleCommitteeMember, roles.ScopeDepartment, "finance"),
		assignment(roles.RoleHealthSafetyRep, roles.ScopeDepartment, "hr"),
	}

	match := CheckScope(assignments, Scope(roles.ScopeDepartment, "finance"))
	assert.True(t, match.Allowed)
	require.Len(t, match.Matching, 2, "every matching assignment is reported")
}

func TestCheckScope_MissingScopeTypeIsGlobal(t *testing.T) {
	assignments := []membership.RoleAssignment{
		assignment(roles.RolePresident, "", ""),
	}

	assert.True(t, CheckScope(assignments, Scope(roles.ScopeDepartment, "finance")).Allowed)
	assert.False(t, CheckScope(assignments, Scope(roles.ScopeDepartment, "finance").WithoutGlobal()).Allowed)
}

func TestCheckScope_GlobalRequirement(t *testing.T) {
	global := []membership.RoleAssignment{
		assignment(roles.RolePresident, roles.ScopeGlobal, ""),
	}
	scoped := []membership.RoleAssignment{
		assignment(roles.RoleSteward, roles.ScopeDepartment, "finance"),
	}

	// Requiring global scope explicitly: only global assignments match,
	// with or without the bypass.
	assert.True(t, CheckScope(global, Scope(roles.ScopeGlobal, "").WithoutGlobal()).Allowed)
	assert.False(t, CheckScope(scoped, Scope(roles.ScopeGlobal, "")).Allowed)
}

func TestCheckScope_NoAssignments(t *testing.T) {
	match := CheckScope(nil, Scope(roles.ScopeDepartment, "finance"))
	assert.False(t, match.Allowed)
	assert.Empty(t, match.Matching)
}
