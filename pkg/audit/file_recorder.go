package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileRecorder persists decision records to newline-delimited JSON files
type FileRecorder struct {
	basePath string
	file     *os.File
	mu       sync.Mutex
	encoder  *json.Encoder
	rotate   bool
	maxSize  int64 // Max file size in bytes before rotation
	maxFiles int   // Max number of files to keep
}

// FileRecorderConfig configures the file recorder
type FileRecorderConfig struct {
	BasePath string // Base directory for decision logs
	Rotate   bool   // Enable log rotation
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of files to keep (default: 10)
}

// DefaultFileRecorderConfig returns default configuration
func DefaultFileRecorderConfig() FileRecorderConfig {
	return FileRecorderConfig{
		BasePath: "/var/log/warden/decisions",
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024, // 100MB
		MaxFiles: 10,
	}
}

// NewFileRecorder creates a new file-based decision recorder
func NewFileRecorder(config FileRecorderConfig) (*FileRecorder, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create decision log directory: %w", err)
	}

	recorder := &FileRecorder{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}

	if recorder.maxSize == 0 {
		recorder.maxSize = 100 * 1024 * 1024 // 100MB default
	}
	if recorder.maxFiles == 0 {
		recorder.maxFiles = 10
	}

	// Open the current log file
	if err := recorder.openLogFile(); err != nil {
		return nil, err
	}

	return recorder, nil
}

// openLogFile opens or creates the current log file
func (f *FileRecorder) openLogFile() error {
	filename := filepath.Join(f.basePath, "decisions.log")

	// Check if we need to rotate
	if f.rotate {
		if info, err := os.Stat(filename); err == nil && info.Size() >= f.maxSize {
			if err := f.rotateFile(); err != nil {
				return fmt.Errorf("failed to rotate decision log: %w", err)
			}
		}
	}

	// Open file in append mode
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open decision log file: %w", err)
	}

	f.file = file
	f.encoder = json.NewEncoder(file)

	return nil
}

// rotateFile rotates the log file
func (f *FileRecorder) rotateFile() error {
	currentFile := filepath.Join(f.basePath, "decisions.log")

	// Close current file if open
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}

	// Generate timestamp for rotated file
	timestamp := time.Now().Format("2006-01-02-15-04-05")
	rotatedFile := filepath.Join(f.basePath, fmt.Sprintf("decisions-%s.log", timestamp))

	// Rename current file to rotated name
	if err := os.Rename(currentFile, rotatedFile); err != nil {
		return fmt.Errorf("failed to rename decision log: %w", err)
	}

	// Clean up old files if needed
	if err := f.cleanupOldFiles(); err != nil {
		// Log but don't fail on cleanup errors
		fmt.Fprintf(os.Stderr, "failed to cleanup old decision logs: %v\n", err)
	}

	return nil
}

// cleanupOldFiles removes old log files beyond the retention limit
func (f *FileRecorder) cleanupOldFiles() error {
	pattern := filepath.Join(f.basePath, "decisions-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	// Timestamped names sort chronologically, so a lexical sort puts
	// the oldest files first.
	if len(files) > f.maxFiles {
		sort.Strings(files)
		filesToDelete := files[:len(files)-f.maxFiles]
		for _, file := range filesToDelete {
			if err := os.Remove(file); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old decision log %s: %v\n", file, err)
			}
		}
	}

	return nil
}

// Record writes a decision record to the file
func (f *FileRecorder) Record(ctx context.Context, rec *DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Check if we need to rotate
	if f.rotate && f.file != nil {
		if info, err := f.file.Stat(); err == nil && info.Size() >= f.maxSize {
			if err := f.openLogFile(); err != nil {
				return fmt.Errorf("failed to rotate decision log: %w", err)
			}
		}
	}

	// Write record as JSON
	if err := f.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to write decision record: %w", err)
	}

	return nil
}

// Close closes the file recorder
func (f *FileRecorder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}

	return nil
}

// ReadRecords reads decision records from the current file
func (f *FileRecorder) ReadRecords(count int) ([]*DecisionRecord, error) {
	filename := filepath.Join(f.basePath, "decisions.log")

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	defer file.Close()

	var records []*DecisionRecord
	decoder := json.NewDecoder(file)

	for {
		var rec DecisionRecord
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode decision record: %w", err)
		}
		records = append(records, &rec)

		if count > 0 && len(records) >= count {
			break
		}
	}

	return records, nil
}
