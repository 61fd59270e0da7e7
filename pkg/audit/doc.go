// Package audit records authorization decisions for compliance and
// forensics.
//
// # Overview
//
// Every authorization decision, allowed or denied, produces one
// DecisionRecord. Recording is synchronous: the decision is not
// released to the caller until its record is durable in the configured
// sinks. Recorder failures are surfaced to operators but never change
// the decision that was made.
//
// # Sinks
//
// DBRecorder: PostgreSQL table with search, stats and export
// FileRecorder: rotated newline-delimited JSON files
// StreamRecorder: Redis stream for near-real-time consumers
// MultiRecorder: synchronous fan-out across several sinks
//
// # Usage Example
//
// Record a decision through a fan-out:
//
//	recorder := audit.NewMultiRecorder(dbRecorder, fileRecorder).
//		WithFailureHandler(func(err error) {
//			log.WithError(err).Error("audit sink failure")
//		})
//	err := recorder.Record(ctx, rec)
//
// Search recorded decisions:
//
//	results, err := dbRecorder.Search(ctx, audit.SearchFilter{
//		StartTime: &dayAgo,
//		Decisions: []audit.Decision{audit.DecisionDenied},
//		Reason:    audit.ReasonMemberNotFound,
//	})
//
// # Retention Policy
//
// Default: 90 days active retention
// Archiving: NDJSON batches compressed and shipped to S3 before purge
// Export: JSON, CSV, NDJSON formats for external analysis
//
// # Related Packages
//
//   - pkg/authz: produces decision records
//   - pkg/api: serves the decision record API
package audit
