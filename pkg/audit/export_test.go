package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	rec := testRecord(DecisionDenied, ReasonInsufficientLevel)
	rec.RequiredLevel = 50

	data, err := exportCSV([]*DecisionRecord{rec})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Timestamp,Decision,Reason"))
	assert.Contains(t, lines[1], rec.ID)
	assert.Contains(t, lines[1], "denied")
	assert.Contains(t, lines[1], "steward;member")
	assert.Contains(t, lines[1], "50")
}

func TestExportNDJSON(t *testing.T) {
	records := []*DecisionRecord{
		testRecord(DecisionAllowed, ReasonMembership),
		testRecord(DecisionDenied, ReasonMissingPermission),
	}

	data, err := exportNDJSON(records)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	for i, line := range lines {
		var rec DecisionRecord
		require.NoError(t, json.Unmarshal(line, &rec))
		assert.Equal(t, records[i].ID, rec.ID)
	}
}

func TestExportJSON(t *testing.T) {
	records := []*DecisionRecord{
		testRecord(DecisionAllowed, ReasonAuthorityLevel),
		testRecord(DecisionAllowed, ReasonScopedRole),
	}

	data, err := exportJSON(records)
	require.NoError(t, err)

	var got []*DecisionRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, records[0].ID, got[0].ID)
	assert.Equal(t, records[1].Reason, got[1].Reason)
}
