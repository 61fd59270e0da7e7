package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides read and maintenance access to recorded decisions
type Store interface {
	// Search searches decision records based on filters
	Search(ctx context.Context, filter SearchFilter) ([]*DecisionRecord, error)

	// Get retrieves a specific decision record by ID
	Get(ctx context.Context, id string) (*DecisionRecord, error)

	// GetStats retrieves decision record statistics
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// Export exports decision records in the specified format
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)
}

// Get retrieves a specific decision record by ID. Returns nil when no
// record with that ID exists.
func (d *DBRecorder) Get(ctx context.Context, id string) (*DecisionRecord, error) {
	query := `
		SELECT
			id, timestamp, decision, reason,
			user_id, organization_id, member_id, roles, highest_level,
			action, resource_type, resource_id,
			required_level, permission, required_role, scope, sensitive,
			request_id, ip_address, user_agent, method, path,
			elapsed_ms
		FROM audit_decisions
		WHERE id = $1
	`

	rows, err := d.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get decision record: %w", err)
		}
		return nil, nil
	}

	return scanRecord(rows)
}

// Export exports decision records matching the filter in the
// specified format
func (d *DBRecorder) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	records, err := d.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatJSON:
		return exportJSON(records)
	case ExportFormatCSV:
		return exportCSV(records)
	case ExportFormatNDJSON:
		return exportNDJSON(records)
	default:
		return exportJSON(records)
	}
}
