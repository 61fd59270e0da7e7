package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/unioneyes/warden/pkg/observability"
)

// Sweeper applies a retention policy to stored decision records,
// archiving expired records before deleting them
type Sweeper struct {
	recorder *DBRecorder
	archiver Archiver
	policy   RetentionPolicy
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// SweepResult summarizes one retention sweep
type SweepResult struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
	Purged   int64     `json:"purged"`
	Objects  []string  `json:"objects,omitempty"`
}

// NewSweeper creates a retention sweeper. The archiver may be nil when
// the policy has archiving disabled.
func NewSweeper(recorder *DBRecorder, archiver Archiver, policy RetentionPolicy, logger *observability.Logger, metrics *observability.Metrics) (*Sweeper, error) {
	if recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}
	if policy.ArchiveEnabled && archiver == nil {
		return nil, fmt.Errorf("archiver is required when archiving is enabled")
	}
	if policy.RetentionDays <= 0 {
		policy.RetentionDays = DefaultRetentionPolicy().RetentionDays
	}
	if policy.BatchSize <= 0 {
		policy.BatchSize = DefaultRetentionPolicy().BatchSize
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Sweeper{
		recorder: recorder,
		archiver: archiver,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Sweep archives and purges records older than the retention window.
// Records are archived first; nothing is deleted if archiving fails.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	cutoff := time.Now().AddDate(0, 0, -s.policy.RetentionDays)
	result := &SweepResult{Cutoff: cutoff}

	log := s.logger.WithFields(map[string]interface{}{
		"cutoff":         cutoff.Format(time.RFC3339),
		"retention_days": s.policy.RetentionDays,
	})
	log.Info("Starting retention sweep")

	if s.policy.ArchiveEnabled {
		if err := s.archiveExpired(ctx, cutoff, result); err != nil {
			log.WithError(err).Error("Retention sweep aborted: archiving failed")
			return result, err
		}
	}

	purged, err := s.recorder.Purge(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Retention sweep failed to purge records")
		return result, err
	}
	result.Purged = purged

	if s.metrics != nil {
		s.metrics.AuditRecordsPurged.Add(float64(purged))
		s.metrics.AuditRecordsArchived.Add(float64(result.Archived))
	}

	log.WithFields(map[string]interface{}{
		"archived": result.Archived,
		"purged":   result.Purged,
	}).Info("Retention sweep complete")

	return result, nil
}

// archiveExpired pages through expired records oldest-first and ships
// each batch to the archiver
func (s *Sweeper) archiveExpired(ctx context.Context, cutoff time.Time, result *SweepResult) error {
	for {
		records, err := s.recorder.Search(ctx, SearchFilter{
			EndTime:   &cutoff,
			Limit:     s.policy.BatchSize,
			Offset:    result.Archived,
			SortBy:    "timestamp",
			SortOrder: "asc",
		})
		if err != nil {
			return fmt.Errorf("failed to fetch expired records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		key, err := s.archiver.Archive(ctx, records, s.policy.CompressArchive)
		if err != nil {
			return fmt.Errorf("failed to archive batch: %w", err)
		}

		result.Archived += len(records)
		if key != "" {
			result.Objects = append(result.Objects, key)
		}

		if len(records) < s.policy.BatchSize {
			return nil
		}
	}
}
