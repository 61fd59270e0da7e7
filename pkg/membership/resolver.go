package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unioneyes/warden/pkg/roles"
)

// SQLResolver reads memberships and role assignments from a relational store.
// It works against PostgreSQL in production and SQLite in tests; the queries
// stick to the portable subset of SQL.
type SQLResolver struct {
	db *sql.DB
}

// NewSQLResolver creates a resolver over an existing database handle.
func NewSQLResolver(db *sql.DB) *SQLResolver {
	return &SQLResolver{db: db}
}

// Resolve loads the member record and all active, unexpired role assignments
// for the user within the organization.
func (r *SQLResolver) Resolve(ctx context.Context, userID, organizationID string) (*Membership, error) {
	member, err := r.lookupMember(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}

	assignments, err := r.activeAssignments(ctx, member.ID, organizationID)
	if err != nil {
		return nil, err
	}

	return &Membership{
		Member:      *member,
		Assignments: assignments,
	}, nil
}

func (r *SQLResolver) lookupMember(ctx context.Context, userID, organizationID string) (*Member, error) {
	query := `
		SELECT id, user_id, organization_id, display_name, email, status, joined_at
		FROM organization_members
		WHERE user_id = $1 AND organization_id = $2 AND status = 'active'
	`
	member := &Member{}
	var displayName sql.NullString
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID, organizationID).Scan(
		&member.ID, &member.UserID, &member.OrganizationID,
		&displayName, &email, &member.Status, &member.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoMembership
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query member: %w", err)
	}

	if displayName.Valid {
		member.DisplayName = displayName.String
	}
	if email.Valid {
		member.Email = email.String
	}

	return member, nil
}

func (r *SQLResolver) activeAssignments(ctx context.Context, memberID, organizationID string) ([]RoleAssignment, error) {
	query := `
		SELECT id, member_id, organization_id, role_id, role_name,
		       scope_type, scope_value, is_active, granted_at, expires_at
		FROM role_assignments
		WHERE member_id = $1 AND organization_id = $2 AND is_active = TRUE
		  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		ORDER BY granted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, memberID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var roleName sql.NullString
		var scopeType string
		var scopeValue sql.NullString
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&a.ID, &a.MemberID, &a.OrganizationID, &a.RoleID, &roleName,
			&scopeType, &scopeValue, &a.IsActive, &a.GrantedAt, &expiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		if roleName.Valid {
			a.RoleName = roleName.String
		}
		a.ScopeType = roles.ScopeType(scopeType)
		if scopeValue.Valid {
			a.ScopeValue = scopeValue.String
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			a.ExpiresAt = &t
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role assignments: %w", err)
	}

	return assignments, nil
}

// EnsureSchema creates the membership tables if they do not exist. Production
// deployments own their migrations; this exists for tests and local
// development.
func (r *SQLResolver) EnsureSchema(ctx context.Context) error {
	memberTable := `
		CREATE TABLE IF NOT EXISTS organization_members (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			display_name TEXT,
			email TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, organization_id)
		)
	`
	if _, err := r.db.ExecContext(ctx, memberTable); err != nil {
		return fmt.Errorf("failed to create organization_members table: %w", err)
	}

	assignmentTable := `
		CREATE TABLE IF NOT EXISTS role_assignments (
			id TEXT PRIMARY KEY,
			member_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			role_id TEXT NOT NULL,
			role_name TEXT,
			scope_type TEXT NOT NULL DEFAULT 'global',
			scope_value TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP
		)
	`
	if _, err := r.db.ExecContext(ctx, assignmentTable); err != nil {
		return fmt.Errorf("failed to create role_assignments table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_org_members_user ON organization_members(user_id, organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_role_assignments_member ON role_assignments(member_id, organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_role_assignments_active ON role_assignments(is_active)`,
	}
	for _, index := range indexes {
		if _, err := r.db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
