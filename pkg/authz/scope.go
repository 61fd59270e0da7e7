package authz

import (
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/roles"
)

// ScopeRequirement names the breadth an operation demands: a scope type, an
// optional specific value, and whether a global assignment satisfies it.
// Build requirements with Scope.
type ScopeRequirement struct {
	Type        roles.ScopeType `json:"type"`
	Value       string          `json:"value,omitempty"`
	AllowGlobal bool            `json:"allow_global"`
}

// Scope builds a requirement for the given scope type and value. A globally
// scoped assignment satisfies it; chain WithoutGlobal to demand an exact
// match. An empty value accepts any value of the scope type.
func Scope(scopeType roles.ScopeType, value string) ScopeRequirement {
	return ScopeRequirement{Type: scopeType, Value: value, AllowGlobal: true}
}

// WithoutGlobal returns a copy of the requirement that globally scoped
// assignments no longer satisfy.
func (s ScopeRequirement) WithoutGlobal() ScopeRequirement {
	s.AllowGlobal = false
	return s
}

// ScopeMatch is the outcome of a scope check. Matching lists every
// assignment that satisfied the requirement; a member commonly reaches the
// same scope through more than one role, and callers inspect all of them.
type ScopeMatch struct {
	Allowed  bool
	Matching []membership.RoleAssignment
}

// CheckScope reports whether any assignment satisfies the requirement. An
// assignment matches when it is scoped globally and the requirement allows
// the global bypass, or when its scope type equals the required type and its
// value equals the required value (any value matches when the requirement
// names none). The global bypass is what lets a global executive role reach
// every department without per-department assignments.
func CheckScope(assignments []membership.RoleAssignment, req ScopeRequirement) ScopeMatch {
	var match ScopeMatch
	for _, a := range assignments {
		if !scopeSatisfied(a, req) {
			continue
		}
		match.Allowed = true
		match.Matching = append(match.Matching, a)
	}
	return match
}

func scopeSatisfied(a membership.RoleAssignment, req ScopeRequirement) bool {
	if req.AllowGlobal && assignmentIsGlobal(a) {
		return true
	}
	if a.ScopeType != req.Type {
		return false
	}
	return req.Value == "" || a.ScopeValue == req.Value
}

// Assignments written before scoping existed carry no scope type; they were
// organization-wide grants.
func assignmentIsGlobal(a membership.RoleAssignment) bool {
	return a.ScopeType == roles.ScopeGlobal || a.ScopeType == ""
}
