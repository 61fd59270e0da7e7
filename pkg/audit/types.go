package audit

import (
	"encoding/json"
	"time"
)

// Decision is the outcome of an authorization check
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
)

// Grant methods recorded on allowed decisions
const (
	ReasonMembership     = "membership"
	ReasonAuthorityLevel = "authority_level"
	ReasonPermission     = "permission"
	ReasonWildcard       = "wildcard"
	ReasonScopedRole     = "scoped_role"
)

// Denial reasons recorded on denied decisions
const (
	ReasonUnauthenticated     = "unauthenticated"
	ReasonMemberNotFound      = "member_not_found"
	ReasonInsufficientLevel   = "insufficient_authority_level"
	ReasonMissingPermission   = "missing_permission"
	ReasonScopeMismatch       = "scope_mismatch"
	ReasonInfrastructureError = "infrastructure_error"
)

// DecisionRecord represents a single authorization decision
type DecisionRecord struct {
	// Core fields
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Decision  Decision  `json:"decision"`
	Reason    string    `json:"reason"`

	// Actor information
	UserID         string   `json:"user_id,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	MemberID       string   `json:"member_id,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	HighestLevel   int      `json:"highest_level"`

	// What was checked
	Action        string `json:"action"`
	ResourceType  string `json:"resource_type,omitempty"`
	ResourceID    string `json:"resource_id,omitempty"`
	RequiredLevel int    `json:"required_level,omitempty"`
	Permission    string `json:"permission,omitempty"`
	RequiredRole  string `json:"required_role,omitempty"`
	Scope         string `json:"scope,omitempty"`
	Sensitive     bool   `json:"sensitive,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Timing
	ElapsedMS int64 `json:"elapsed_ms"`
}

// ToJSON converts the decision record to JSON
func (r *DecisionRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a decision record from JSON
func FromJSON(data []byte) (*DecisionRecord, error) {
	var rec DecisionRecord
	err := json.Unmarshal(data, &rec)
	return &rec, err
}

// SearchFilter represents filters for searching decision records
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	UserID         string
	OrganizationID string
	MemberID       string

	// Decision filters
	Decisions []Decision
	Reason    string

	// Check filters
	Action       string
	ResourceType string
	ResourceID   string
	Sensitive    *bool

	// Request context filters
	IPAddress string

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // field name to sort by
	SortOrder string // "asc" or "desc"
}

// ExportFormat represents the format for exporting decision records
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// Stats represents statistics about recorded decisions
type Stats struct {
	TotalDecisions      int64              `json:"total_decisions"`
	ByDecision          map[Decision]int64 `json:"by_decision"`
	ByReason            map[string]int64   `json:"by_reason"`
	ByAction            map[string]int64   `json:"by_action"`
	UniqueUsers         int64              `json:"unique_users"`
	UniqueOrganizations int64              `json:"unique_organizations"`
	Denials             int64              `json:"denials"`
	SensitiveDecisions  int64              `json:"sensitive_decisions"`
	TimeRange           *TimeRange         `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long decision records should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep decision records
	RetentionDays int

	// ArchiveEnabled determines if old records should be archived before deletion
	ArchiveEnabled bool

	// CompressArchive determines if archived records should be compressed
	CompressArchive bool

	// BatchSize is the number of records fetched per archive batch
	BatchSize int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays:   90,
		ArchiveEnabled:  true,
		CompressArchive: true,
		BatchSize:       1000,
	}
}
