package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DBRecorder persists decision records to PostgreSQL
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a new database-backed decision recorder
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	recorder := &DBRecorder{
		db: db,
	}

	// Ensure the audit_decisions table exists
	if err := recorder.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_decisions table: %w", err)
	}

	return recorder, nil
}

// ensureTable creates the audit_decisions table if it doesn't exist
func (d *DBRecorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_decisions (
		id VARCHAR(36) PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		decision VARCHAR(10) NOT NULL,
		reason VARCHAR(50) NOT NULL,
		user_id VARCHAR(255),
		organization_id VARCHAR(255),
		member_id VARCHAR(255),
		roles TEXT[],
		highest_level INTEGER NOT NULL DEFAULT 0,
		action VARCHAR(255) NOT NULL,
		resource_type VARCHAR(100),
		resource_id VARCHAR(255),
		required_level INTEGER,
		permission VARCHAR(100),
		required_role VARCHAR(100),
		scope VARCHAR(255),
		sensitive BOOLEAN NOT NULL DEFAULT FALSE,
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		user_agent TEXT,
		method VARCHAR(10),
		path TEXT,
		elapsed_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	-- Create indexes for common query patterns
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_timestamp ON audit_decisions(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_user_id ON audit_decisions(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_organization_id ON audit_decisions(organization_id);
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_decision ON audit_decisions(decision);
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_action ON audit_decisions(action);
	CREATE INDEX IF NOT EXISTS idx_audit_decisions_resource ON audit_decisions(resource_type, resource_id);
	`

	_, err := d.db.Exec(query)
	return err
}

// Record persists a decision record to the database
func (d *DBRecorder) Record(ctx context.Context, rec *DecisionRecord) error {
	query := `
		INSERT INTO audit_decisions (
			id, timestamp, decision, reason,
			user_id, organization_id, member_id, roles, highest_level,
			action, resource_type, resource_id,
			required_level, permission, required_role, scope, sensitive,
			request_id, ip_address, user_agent, method, path,
			elapsed_ms
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23
		)
	`

	_, err := d.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp, rec.Decision, rec.Reason,
		rec.UserID, rec.OrganizationID, rec.MemberID, pq.Array(rec.Roles), rec.HighestLevel,
		rec.Action, rec.ResourceType, rec.ResourceID,
		rec.RequiredLevel, rec.Permission, rec.RequiredRole, rec.Scope, rec.Sensitive,
		rec.RequestID, rec.IPAddress, rec.UserAgent, rec.Method, rec.Path,
		rec.ElapsedMS,
	)

	if err != nil {
		return fmt.Errorf("failed to insert decision record: %w", err)
	}

	return nil
}

// sortableColumns whitelists the columns Search may sort by
var sortableColumns = map[string]bool{
	"timestamp":     true,
	"decision":      true,
	"reason":        true,
	"action":        true,
	"user_id":       true,
	"highest_level": true,
	"elapsed_ms":    true,
}

// Search searches decision records based on filters
func (d *DBRecorder) Search(ctx context.Context, filter SearchFilter) ([]*DecisionRecord, error) {
	query := `
		SELECT
			id, timestamp, decision, reason,
			user_id, organization_id, member_id, roles, highest_level,
			action, resource_type, resource_id,
			required_level, permission, required_role, scope, sensitive,
			request_id, ip_address, user_agent, method, path,
			elapsed_ms
		FROM audit_decisions
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	// Build WHERE clause based on filters
	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, filter.UserID)
		argCount++
	}

	if filter.OrganizationID != "" {
		query += fmt.Sprintf(" AND organization_id = $%d", argCount)
		args = append(args, filter.OrganizationID)
		argCount++
	}

	if filter.MemberID != "" {
		query += fmt.Sprintf(" AND member_id = $%d", argCount)
		args = append(args, filter.MemberID)
		argCount++
	}

	if len(filter.Decisions) > 0 {
		query += fmt.Sprintf(" AND decision = ANY($%d)", argCount)
		decisionStrs := make([]string, len(filter.Decisions))
		for i, dec := range filter.Decisions {
			decisionStrs[i] = string(dec)
		}
		args = append(args, pq.Array(decisionStrs))
		argCount++
	}

	if filter.Reason != "" {
		query += fmt.Sprintf(" AND reason = $%d", argCount)
		args = append(args, filter.Reason)
		argCount++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, filter.Action)
		argCount++
	}

	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, filter.ResourceType)
		argCount++
	}

	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, filter.ResourceID)
		argCount++
	}

	if filter.Sensitive != nil {
		query += fmt.Sprintf(" AND sensitive = $%d", argCount)
		args = append(args, *filter.Sensitive)
		argCount++
	}

	if filter.IPAddress != "" {
		query += fmt.Sprintf(" AND ip_address = $%d", argCount)
		args = append(args, filter.IPAddress)
		argCount++
	}

	// Add sorting, restricted to known columns
	if filter.SortBy != "" && sortableColumns[filter.SortBy] {
		order := "DESC"
		if filter.SortOrder == "asc" {
			order = "ASC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", filter.SortBy, order)
	} else {
		query += " ORDER BY timestamp DESC"
	}

	// Add pagination
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search decision records: %w", err)
	}
	defer rows.Close()

	records := make([]*DecisionRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision records: %w", err)
	}

	return records, nil
}

// scanRecord scans a single decision record row
func scanRecord(rows *sql.Rows) (*DecisionRecord, error) {
	rec := &DecisionRecord{}

	var userID, organizationID, memberID sql.NullString
	var resourceType, resourceID sql.NullString
	var requiredLevel sql.NullInt64
	var permission, requiredRole, scope sql.NullString
	var requestID, ipAddress, userAgent, method, path sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.Timestamp, &rec.Decision, &rec.Reason,
		&userID, &organizationID, &memberID, pq.Array(&rec.Roles), &rec.HighestLevel,
		&rec.Action, &resourceType, &resourceID,
		&requiredLevel, &permission, &requiredRole, &scope, &rec.Sensitive,
		&requestID, &ipAddress, &userAgent, &method, &path,
		&rec.ElapsedMS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan decision record: %w", err)
	}

	rec.UserID = userID.String
	rec.OrganizationID = organizationID.String
	rec.MemberID = memberID.String
	rec.ResourceType = resourceType.String
	rec.ResourceID = resourceID.String
	rec.RequiredLevel = int(requiredLevel.Int64)
	rec.Permission = permission.String
	rec.RequiredRole = requiredRole.String
	rec.Scope = scope.String
	rec.RequestID = requestID.String
	rec.IPAddress = ipAddress.String
	rec.UserAgent = userAgent.String
	rec.Method = method.String
	rec.Path = path.String

	return rec, nil
}

// GetStats retrieves decision record statistics
func (d *DBRecorder) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	stats := &Stats{
		ByDecision: make(map[Decision]int64),
		ByReason:   make(map[string]int64),
		ByAction:   make(map[string]int64),
	}

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if startTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *startTime)
		argCount++
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.Start = *startTime
	}

	if endTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *endTime)
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.End = *endTime
	}

	// Total decisions
	err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_decisions %s", whereClause), args...).Scan(&stats.TotalDecisions)
	if err != nil {
		return nil, fmt.Errorf("failed to get total decisions: %w", err)
	}

	// Decisions by outcome
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT decision, COUNT(*) FROM audit_decisions %s GROUP BY decision", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions by outcome: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision Decision
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, err
		}
		stats.ByDecision[decision] = count
	}

	// Decisions by reason
	rows, err = d.db.QueryContext(ctx, fmt.Sprintf("SELECT reason, COUNT(*) FROM audit_decisions %s GROUP BY reason", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions by reason: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		stats.ByReason[reason] = count
	}

	// Decisions by action
	rows, err = d.db.QueryContext(ctx, fmt.Sprintf("SELECT action, COUNT(*) FROM audit_decisions %s GROUP BY action", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions by action: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.ByAction[action] = count
	}

	// Unique users
	err = d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT user_id) FROM audit_decisions %s AND user_id IS NOT NULL", whereClause), args...).Scan(&stats.UniqueUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique users: %w", err)
	}

	// Unique organizations
	err = d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT organization_id) FROM audit_decisions %s AND organization_id IS NOT NULL", whereClause), args...).Scan(&stats.UniqueOrganizations)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique organizations: %w", err)
	}

	// Denials
	deniedClause := whereClause + " AND decision = 'denied'"
	err = d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_decisions %s", deniedClause), args...).Scan(&stats.Denials)
	if err != nil {
		return nil, fmt.Errorf("failed to get denials: %w", err)
	}

	// Sensitive decisions
	sensitiveClause := whereClause + " AND sensitive = TRUE"
	err = d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_decisions %s", sensitiveClause), args...).Scan(&stats.SensitiveDecisions)
	if err != nil {
		return nil, fmt.Errorf("failed to get sensitive decisions: %w", err)
	}

	return stats, nil
}

// Purge deletes records older than the cutoff and returns how many
// were removed
func (d *DBRecorder) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM audit_decisions WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge decision records: %w", err)
	}

	return result.RowsAffected()
}

// Close closes the database recorder
func (d *DBRecorder) Close() error {
	// We don't close the database connection as it may be shared
	return nil
}
