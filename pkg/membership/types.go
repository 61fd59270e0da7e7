package membership

import (
	"context"
	"errors"
	"time"

	"github.com/unioneyes/warden/pkg/roles"
)

// ErrNoMembership is returned when the user has no membership record in the
// target organization. It is deliberately distinct from infrastructure
// failures so callers can deny access instead of reporting an outage.
var ErrNoMembership = errors.New("membership: member not found")

// Member is one user's membership record in one organization. Display fields
// come from the membership store, not the identity provider.
type Member struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`
}

// RoleAssignment is one concrete grant of a role to a member within a scope.
// A member may hold several concurrent assignments (steward in one department
// and officer at global scope, for example). Assignments are created and
// mutated by the membership-management subsystem; this package only reads
// them.
type RoleAssignment struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"member_id"`
	OrganizationID string          `json:"organization_id"`
	RoleID         string          `json:"role_id"`
	RoleName       string          `json:"role_name,omitempty"`
	ScopeType      roles.ScopeType `json:"scope_type"`
	ScopeValue     string          `json:"scope_value,omitempty"`
	IsActive       bool            `json:"is_active"`
	GrantedAt      time.Time       `json:"granted_at"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

// Membership bundles the member record with their active role assignments.
// Assignments may be empty for a member who currently holds no active role.
type Membership struct {
	Member      Member           `json:"member"`
	Assignments []RoleAssignment `json:"assignments"`
}

// Resolver loads a user's standing within an organization. Implementations
// must filter to active, unexpired assignments at the query boundary so
// callers never re-filter, must return ErrNoMembership when the user is not
// an active member, and must surface store failures as ordinary wrapped
// errors distinguishable from ErrNoMembership.
type Resolver interface {
	Resolve(ctx context.Context, userID, organizationID string) (*Membership, error)
}
