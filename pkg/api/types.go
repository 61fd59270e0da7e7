package api

import (
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

// meResponse is the caller's resolved standing: who the identity provider
// says they are, their member record, and the grants aggregated from their
// active assignments.
type meResponse struct {
	Identity     identity.Identity           `json:"identity"`
	Profile      *identity.Profile           `json:"profile,omitempty"`
	Member       membership.Member           `json:"member"`
	Assignments  []membership.RoleAssignment `json:"assignments"`
	Roles        []string                    `json:"roles"`
	HighestLevel int                         `json:"highest_role_level"`
	Permissions  []roles.Permission          `json:"permissions"`
	Wildcard     bool                        `json:"wildcard"`
}

// catalogResponse lists the role hierarchy in ascending authority order.
type catalogResponse struct {
	Roles       []roles.Definition `json:"roles"`
	DefaultRole string             `json:"default_role"`
	Aliases     map[string]string  `json:"aliases,omitempty"`
}

// checkRequest describes the requirement to evaluate against the caller's
// own membership. Gates compose the same way route requirements do: every
// gate that is set must pass.
type checkRequest struct {
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	MinLevel     int        `json:"min_level,omitempty"`
	Permission   string     `json:"permission,omitempty"`
	Role         string     `json:"role,omitempty"`
	Scope        *scopeSpec `json:"scope,omitempty"`
	Sensitive    bool       `json:"sensitive,omitempty"`
}

// scopeSpec narrows a role gate to a scope. Globally scoped assignments
// satisfy it unless disallow_global is set, matching the in-process
// default.
type scopeSpec struct {
	Type           string `json:"type"`
	Value          string `json:"value,omitempty"`
	DisallowGlobal bool   `json:"disallow_global,omitempty"`
}

// checkResponse reports the outcome of one access check. A denial is a
// successful check: allowed is false and reason carries the audit reason
// code. HTTP error statuses are reserved for the caller's own
// authentication and for infrastructure failures.
type checkResponse struct {
	Allowed          bool     `json:"allowed"`
	Reason           string   `json:"reason,omitempty"`
	HighestRoleLevel int      `json:"highest_role_level,omitempty"`
	MatchingRoles    []string `json:"matching_roles,omitempty"`
}
