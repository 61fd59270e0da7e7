package audit

import (
	"context"
	"net/http"
)

// Recorder is the interface for recording authorization decisions.
//
// Record is synchronous: when it returns nil the record is durable in
// the sink. A Recorder error is reported to operators by the caller
// and never alters the decision that was already made.
type Recorder interface {
	// Record persists a single decision record
	Record(ctx context.Context, rec *DecisionRecord) error

	// Close closes the recorder and flushes any buffered records
	Close() error
}

// NopRecorder is a recorder that discards all records (used when no
// recorder is configured)
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, rec *DecisionRecord) error {
	return nil
}

func (NopRecorder) Close() error {
	return nil
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}
