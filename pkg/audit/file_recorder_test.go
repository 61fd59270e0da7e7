package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(decision Decision, reason string) *DecisionRecord {
	return &DecisionRecord{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Decision:       decision,
		Reason:         reason,
		UserID:         "user-1",
		OrganizationID: "org-1",
		MemberID:       "mem-1",
		Roles:          []string{"steward", "member"},
		HighestLevel:   50,
		Action:         "grievance:update",
		ResourceType:   "grievance",
		ResourceID:     "grv-42",
		ElapsedMS:      3,
	}
}

func TestFileRecorder_Basic(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "decisions-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	config := FileRecorderConfig{
		BasePath: tmpDir,
		Rotate:   false,
		MaxSize:  1024 * 1024,
		MaxFiles: 5,
	}

	recorder, err := NewFileRecorder(config)
	require.NoError(t, err)
	defer recorder.Close()

	ctx := context.Background()
	rec := testRecord(DecisionAllowed, ReasonAuthorityLevel)

	err = recorder.Record(ctx, rec)
	require.NoError(t, err)

	// Verify log file was created
	logFile := filepath.Join(tmpDir, "decisions.log")
	assert.FileExists(t, logFile)

	// Read and verify content
	records, err := recorder.ReadRecords(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, DecisionAllowed, records[0].Decision)
	assert.Equal(t, ReasonAuthorityLevel, records[0].Reason)
	assert.Equal(t, []string{"steward", "member"}, records[0].Roles)
	assert.Equal(t, 50, records[0].HighestLevel)
}

func TestFileRecorder_MultipleRecords(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "decisions-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	config := FileRecorderConfig{
		BasePath: tmpDir,
		Rotate:   false,
	}

	recorder, err := NewFileRecorder(config)
	require.NoError(t, err)
	defer recorder.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err = recorder.Record(ctx, testRecord(DecisionDenied, ReasonMissingPermission))
		require.NoError(t, err)
	}

	records, err := recorder.ReadRecords(10)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestFileRecorder_Rotation(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "decisions-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	config := FileRecorderConfig{
		BasePath: tmpDir,
		Rotate:   true,
		MaxSize:  64, // Force rotation after the first record
		MaxFiles: 5,
	}

	recorder, err := NewFileRecorder(config)
	require.NoError(t, err)
	defer recorder.Close()

	ctx := context.Background()

	require.NoError(t, recorder.Record(ctx, testRecord(DecisionAllowed, ReasonPermission)))
	require.NoError(t, recorder.Record(ctx, testRecord(DecisionAllowed, ReasonPermission)))

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "decisions-*.log"))
	require.NoError(t, err)
	assert.Len(t, rotated, 1)

	// The active file holds only the record written after rotation
	records, err := recorder.ReadRecords(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDefaultFileRecorderConfig(t *testing.T) {
	config := DefaultFileRecorderConfig()

	assert.Equal(t, "/var/log/warden/decisions", config.BasePath)
	assert.True(t, config.Rotate)
	assert.Equal(t, int64(100*1024*1024), config.MaxSize)
	assert.Equal(t, 10, config.MaxFiles)
}
