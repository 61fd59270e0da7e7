package roles

import (
	"fmt"
	"sort"
	"strings"
)

// Permission identifies a single grantable capability as "resource:action".
type Permission string

// PermissionWildcard grants every permission, including ones added later.
const PermissionWildcard Permission = "*"

// Permissions used by the built-in union role catalog.
const (
	PermissionProfileRead       Permission = "profile:read"
	PermissionProfileUpdate     Permission = "profile:update"
	PermissionDocumentRead      Permission = "document:read"
	PermissionDocumentShare     Permission = "document:share"
	PermissionDocumentManage    Permission = "document:manage"
	PermissionGrievanceCreate   Permission = "grievance:create"
	PermissionGrievanceReadOwn  Permission = "grievance:read_own"
	PermissionGrievanceRead     Permission = "grievance:read"
	PermissionGrievanceUpdate   Permission = "grievance:update"
	PermissionGrievanceAssign   Permission = "grievance:assign"
	PermissionGrievanceApprove  Permission = "grievance:approve"
	PermissionGrievanceEscalate Permission = "grievance:escalate"
	PermissionMemberRead        Permission = "member:read"
	PermissionMemberUpdate      Permission = "member:update"
	PermissionMemberManage      Permission = "member:manage"
	PermissionCommitteeRead     Permission = "committee:read"
	PermissionCommitteeJoin     Permission = "committee:participate"
	PermissionCommitteeManage   Permission = "committee:manage"
	PermissionMeetingSchedule   Permission = "meeting:schedule"
	PermissionMinutesManage     Permission = "minutes:manage"
	PermissionSafetyReportWrite Permission = "hs:report_create"
	PermissionSafetyReportRead  Permission = "hs:report_read"
	PermissionSafetyInspect     Permission = "hs:inspect"
	PermissionIncidentManage    Permission = "hs:incident_manage"
	PermissionClaimRead         Permission = "claim:read"
	PermissionClaimCreate       Permission = "claim:create"
	PermissionClaimApprove      Permission = "claim:approve"
	PermissionFinanceRead       Permission = "finance:read"
	PermissionFinanceManage     Permission = "finance:manage"
	PermissionDuesManage        Permission = "dues:manage"
	PermissionReportRead        Permission = "report:read"
	PermissionReportCreate      Permission = "report:create"
	PermissionReportFinancial   Permission = "report:financial"
	PermissionReportExport      Permission = "report:export"
	PermissionCampaignSend      Permission = "campaign:send"
	PermissionContractNegotiate Permission = "contract:negotiate"
	PermissionEmployerManage    Permission = "employer:manage"
	PermissionEventRSVP         Permission = "event:rsvp"
	PermissionEventManage       Permission = "event:manage"
	PermissionVoteCast          Permission = "vote:cast"
	PermissionOrgManage         Permission = "org:manage"
	PermissionRoleRead          Permission = "role:read"
	PermissionRoleAssign        Permission = "role:assign"
	PermissionRoleManage        Permission = "role:manage"
	PermissionAuditRead         Permission = "audit:read"
	PermissionSettingsManage    Permission = "settings:manage"
	PermissionStewardAssign     Permission = "steward:assign"
)

// ScopeType represents the breadth at which a role assignment applies.
type ScopeType string

const (
	ScopeGlobal         ScopeType = "global" // entire organization
	ScopeDepartment     ScopeType = "department"
	ScopeWorksite       ScopeType = "worksite"
	ScopeCommittee      ScopeType = "committee"
	ScopeBargainingUnit ScopeType = "bargaining_unit"
)

// Built-in role identifiers, ordered from base membership to platform operations.
const (
	RoleMember          = "member"
	RoleCommitteeMember = "committee_member"
	RoleHealthSafetyRep = "health_safety_rep"
	RoleCommitteeChair  = "committee_chair"
	RoleSteward         = "steward"
	RoleChiefSteward    = "chief_steward"
	RoleSecretary       = "secretary"
	RoleTreasurer       = "treasurer"
	RoleVicePresident   = "vice_president"
	RoleBusinessAgent   = "business_agent"
	RolePresident       = "president"
	RoleAdmin           = "admin"
	RoleSuperAdmin      = "super_admin"
)

// Definition describes one role: its identifier, authority level, and the
// permissions it grants. Authority levels are unique across a catalog so the
// hierarchy is totally ordered; higher means more privileged.
type Definition struct {
	ID          string       `json:"id" yaml:"id"`
	Level       int          `json:"level" yaml:"level"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Permissions []Permission `json:"permissions" yaml:"permissions"`
}

// Catalog is the immutable role hierarchy: definitions, legacy aliases, and
// the lowest-privilege default role. It is constructed once at process start
// and injected into the components that consult it; all lookup methods are
// pure and safe for unlimited concurrent readers.
type Catalog struct {
	defs        map[string]Definition
	aliases     map[string]string
	defaultRole string
}

// NewCatalog validates and deep-copies the given definitions into a Catalog.
// Validation rules: at least one definition, non-empty lowercase identifiers,
// unique identifiers, unique positive levels, a default role that exists, and
// aliases that map onto known roles without shadowing a canonical identifier.
func NewCatalog(defs []Definition, aliases map[string]string, defaultRole string) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog requires at least one role definition")
	}

	byID := make(map[string]Definition, len(defs))
	byLevel := make(map[int]string, len(defs))
	for _, def := range defs {
		id := strings.TrimSpace(strings.ToLower(def.ID))
		if id == "" {
			return nil, fmt.Errorf("role definition with empty id")
		}
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("duplicate role id %q", id)
		}
		if def.Level < 1 {
			return nil, fmt.Errorf("role %q has non-positive authority level %d", id, def.Level)
		}
		if other, exists := byLevel[def.Level]; exists {
			return nil, fmt.Errorf("roles %q and %q share authority level %d", other, id, def.Level)
		}
		byLevel[def.Level] = id

		perms := make([]Permission, len(def.Permissions))
		copy(perms, def.Permissions)
		byID[id] = Definition{
			ID:          id,
			Level:       def.Level,
			Description: def.Description,
			Permissions: perms,
		}
	}

	defaultRole = strings.TrimSpace(strings.ToLower(defaultRole))
	if _, ok := byID[defaultRole]; !ok {
		return nil, fmt.Errorf("default role %q is not defined", defaultRole)
	}

	aliasCopy := make(map[string]string, len(aliases))
	for legacy, canonical := range aliases {
		legacy = strings.TrimSpace(strings.ToLower(legacy))
		canonical = strings.TrimSpace(strings.ToLower(canonical))
		if legacy == "" {
			return nil, fmt.Errorf("alias with empty legacy name")
		}
		if _, exists := byID[legacy]; exists {
			return nil, fmt.Errorf("alias %q shadows a defined role", legacy)
		}
		if _, ok := byID[canonical]; !ok {
			return nil, fmt.Errorf("alias %q maps to unknown role %q", legacy, canonical)
		}
		aliasCopy[legacy] = canonical
	}

	return &Catalog{
		defs:        byID,
		aliases:     aliasCopy,
		defaultRole: defaultRole,
	}, nil
}

// Level returns the authority level for a canonical role identifier, or 0 for
// any identifier the catalog does not define. Never errors.
func (c *Catalog) Level(roleID string) int {
	def, ok := c.defs[strings.TrimSpace(strings.ToLower(roleID))]
	if !ok {
		return 0
	}
	return def.Level
}

// Normalize maps any role string to a canonical role identifier: legacy
// aliases resolve to their canonical mapping, known identifiers pass through
// unchanged, and everything else falls back to the lowest-privilege default.
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func (c *Catalog) Normalize(raw string) string {
	id, _ := c.Resolve(raw)
	return id
}

// Resolve is Normalize with provenance: the second return reports whether
// the name was actually recognized, directly or through an alias. Callers
// validating role names in requirements use this so an unknown name matches
// nothing instead of quietly becoming the default role.
func (c *Catalog) Resolve(raw string) (string, bool) {
	id := strings.TrimSpace(strings.ToLower(raw))
	if canonical, ok := c.aliases[id]; ok {
		return canonical, true
	}
	if _, ok := c.defs[id]; ok {
		return id, true
	}
	return c.defaultRole, false
}

// Permissions returns a copy of the permission set for a canonical role
// identifier. Unknown roles yield an empty set, never an error.
func (c *Catalog) Permissions(roleID string) []Permission {
	def, ok := c.defs[strings.TrimSpace(strings.ToLower(roleID))]
	if !ok {
		return nil
	}
	perms := make([]Permission, len(def.Permissions))
	copy(perms, def.Permissions)
	return perms
}

// Definition returns a copy of the definition for a canonical role identifier.
func (c *Catalog) Definition(roleID string) (Definition, bool) {
	def, ok := c.defs[strings.TrimSpace(strings.ToLower(roleID))]
	if !ok {
		return Definition{}, false
	}
	perms := make([]Permission, len(def.Permissions))
	copy(perms, def.Permissions)
	def.Permissions = perms
	return def, true
}

// Definitions returns copies of all role definitions ordered by ascending
// authority level.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.defs))
	for id := range c.defs {
		def, _ := c.Definition(id)
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Level < defs[j].Level })
	return defs
}

// DefaultRole returns the lowest-privilege fallback role identifier.
func (c *Catalog) DefaultRole() string {
	return c.defaultRole
}

// Aliases returns a copy of the legacy alias table.
func (c *Catalog) Aliases() map[string]string {
	aliases := make(map[string]string, len(c.aliases))
	for legacy, canonical := range c.aliases {
		aliases[legacy] = canonical
	}
	return aliases
}

// DefaultCatalog returns the built-in union role hierarchy.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions(), DefaultAliases(), RoleMember)
	if err != nil {
		// The built-in tables are validated by tests; reaching this is a bug.
		panic(fmt.Sprintf("roles: invalid built-in catalog: %v", err))
	}
	return c
}

// DefaultDefinitions returns the built-in role definitions for a union local.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          RoleMember,
			Level:       10,
			Description: "Rank-and-file member in good standing",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleCommitteeMember,
			Level:       20,
			Description: "Member serving on a standing committee",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionVoteCast,
				PermissionEventRSVP,
				PermissionCommitteeRead,
				PermissionCommitteeJoin,
			},
		},
		{
			ID:          RoleHealthSafetyRep,
			Level:       30,
			Description: "Health and safety representative",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionVoteCast,
				PermissionEventRSVP,
				PermissionMemberRead,
				PermissionSafetyReportWrite,
				PermissionSafetyReportRead,
				PermissionSafetyInspect,
				PermissionIncidentManage,
			},
		},
		{
			ID:          RoleCommitteeChair,
			Level:       40,
			Description: "Chair of a standing committee",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionVoteCast,
				PermissionEventRSVP,
				PermissionCommitteeRead,
				PermissionCommitteeJoin,
				PermissionCommitteeManage,
				PermissionMeetingSchedule,
				PermissionReportCreate,
			},
		},
		{
			ID:          RoleSteward,
			Level:       50,
			Description: "Shop steward representing members in a unit",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentShare,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionGrievanceRead,
				PermissionGrievanceUpdate,
				PermissionGrievanceAssign,
				PermissionMemberRead,
				PermissionClaimRead,
				PermissionClaimCreate,
				PermissionMeetingSchedule,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleChiefSteward,
			Level:       55,
			Description: "Chief steward coordinating the steward body",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentShare,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionGrievanceRead,
				PermissionGrievanceUpdate,
				PermissionGrievanceAssign,
				PermissionGrievanceApprove,
				PermissionGrievanceEscalate,
				PermissionMemberRead,
				PermissionClaimRead,
				PermissionClaimCreate,
				PermissionMeetingSchedule,
				PermissionStewardAssign,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleSecretary,
			Level:       60,
			Description: "Recording secretary of the local",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentManage,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionMemberRead,
				PermissionMemberUpdate,
				PermissionMinutesManage,
				PermissionMeetingSchedule,
				PermissionEventManage,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleTreasurer,
			Level:       65,
			Description: "Treasurer managing local finances",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionMemberRead,
				PermissionFinanceRead,
				PermissionFinanceManage,
				PermissionDuesManage,
				PermissionReportFinancial,
				PermissionClaimRead,
				PermissionClaimApprove,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleVicePresident,
			Level:       70,
			Description: "Vice president of the local",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentShare,
				PermissionGrievanceCreate,
				PermissionGrievanceReadOwn,
				PermissionGrievanceRead,
				PermissionGrievanceApprove,
				PermissionMemberRead,
				PermissionMemberManage,
				PermissionCommitteeRead,
				PermissionCommitteeManage,
				PermissionReportRead,
				PermissionMeetingSchedule,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleBusinessAgent,
			Level:       75,
			Description: "Business agent handling employer relations",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentShare,
				PermissionGrievanceCreate,
				PermissionGrievanceRead,
				PermissionGrievanceUpdate,
				PermissionGrievanceApprove,
				PermissionGrievanceEscalate,
				PermissionMemberRead,
				PermissionContractNegotiate,
				PermissionEmployerManage,
				PermissionCampaignSend,
				PermissionReportRead,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RolePresident,
			Level:       80,
			Description: "President of the local",
			Permissions: []Permission{
				PermissionProfileRead,
				PermissionProfileUpdate,
				PermissionDocumentRead,
				PermissionDocumentShare,
				PermissionGrievanceCreate,
				PermissionGrievanceRead,
				PermissionGrievanceApprove,
				PermissionMemberRead,
				PermissionMemberManage,
				PermissionCommitteeRead,
				PermissionCommitteeManage,
				PermissionReportRead,
				PermissionFinanceRead,
				PermissionOrgManage,
				PermissionRoleRead,
				PermissionRoleAssign,
				PermissionAuditRead,
				PermissionCampaignSend,
				PermissionMeetingSchedule,
				PermissionVoteCast,
				PermissionEventRSVP,
			},
		},
		{
			ID:          RoleAdmin,
			Level:       90,
			Description: "Platform administrator for the organization",
			Permissions: []Permission{
				PermissionOrgManage,
				PermissionMemberRead,
				PermissionMemberManage,
				PermissionRoleRead,
				PermissionRoleAssign,
				PermissionRoleManage,
				PermissionAuditRead,
				PermissionReportRead,
				PermissionReportExport,
				PermissionFinanceRead,
				PermissionCampaignSend,
				PermissionDocumentManage,
				PermissionSettingsManage,
			},
		},
		{
			ID:          RoleSuperAdmin,
			Level:       100,
			Description: "Platform operations, all permissions",
			Permissions: []Permission{
				PermissionWildcard,
			},
		},
	}
}

// DefaultAliases returns the built-in legacy role alias table. Role names
// accumulate as locals restructure; keeping every historical spelling here
// means no other component branches on old names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"shop_steward":          RoleSteward,
		"union_rep":             RoleSteward,
		"rep":                   RoleSteward,
		"hs_rep":                RoleHealthSafetyRep,
		"safety_rep":            RoleHealthSafetyRep,
		"health_and_safety_rep": RoleHealthSafetyRep,
		"recording_secretary":   RoleSecretary,
		"financial_secretary":   RoleTreasurer,
		"organizer":             RoleBusinessAgent,
		"staff_rep":             RoleBusinessAgent,
		"local_president":       RolePresident,
		"local_admin":           RoleAdmin,
		"sysadmin":              RoleSuperAdmin,
		"owner":                 RoleSuperAdmin,
		"observer":              RoleMember,
		"guest":                 RoleMember,
	}
}
