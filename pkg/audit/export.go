package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// exportJSON exports decision records as a JSON array
func exportJSON(records []*DecisionRecord) ([]byte, error) {
	return json.MarshalIndent(records, "", "  ")
}

// exportNDJSON exports decision records as newline-delimited JSON
func exportNDJSON(records []*DecisionRecord) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports decision records as CSV
func exportCSV(records []*DecisionRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	// Write header
	header := []string{
		"ID",
		"Timestamp",
		"Decision",
		"Reason",
		"UserID",
		"OrganizationID",
		"MemberID",
		"Roles",
		"HighestLevel",
		"Action",
		"ResourceType",
		"ResourceID",
		"RequiredLevel",
		"Permission",
		"RequiredRole",
		"Scope",
		"Sensitive",
		"RequestID",
		"IPAddress",
		"Method",
		"Path",
		"ElapsedMS",
	}

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write records
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			string(rec.Decision),
			rec.Reason,
			rec.UserID,
			rec.OrganizationID,
			rec.MemberID,
			strings.Join(rec.Roles, ";"),
			strconv.Itoa(rec.HighestLevel),
			rec.Action,
			rec.ResourceType,
			rec.ResourceID,
			strconv.Itoa(rec.RequiredLevel),
			rec.Permission,
			rec.RequiredRole,
			rec.Scope,
			strconv.FormatBool(rec.Sensitive),
			rec.RequestID,
			rec.IPAddress,
			rec.Method,
			rec.Path,
			strconv.FormatInt(rec.ElapsedMS, 10),
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
