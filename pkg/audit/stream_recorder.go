package audit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStreamName is the Redis stream decision records are published to
const DefaultStreamName = "warden:decisions"

// StreamRecorder publishes decision records to a Redis stream for
// near-real-time consumers such as SIEM forwarders and alerting.
type StreamRecorder struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamRecorder creates a new Redis stream decision recorder
func NewStreamRecorder(client *redis.Client, stream string, maxLen int64) (*StreamRecorder, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if stream == "" {
		stream = DefaultStreamName
	}
	if maxLen <= 0 {
		maxLen = 100000
	}

	return &StreamRecorder{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Record publishes a decision record to the stream
func (s *StreamRecorder) Record(ctx context.Context, rec *DecisionRecord) error {
	payload, err := rec.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}

	// Flat fields let consumers filter without parsing the payload
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream:       s.stream,
		MaxLenApprox: s.maxLen,
		Values: map[string]interface{}{
			"id":              rec.ID,
			"decision":        string(rec.Decision),
			"reason":          rec.Reason,
			"user_id":         rec.UserID,
			"organization_id": rec.OrganizationID,
			"action":          rec.Action,
			"record":          string(payload),
		},
	}).Err()

	if err != nil {
		return fmt.Errorf("failed to publish decision record: %w", err)
	}

	return nil
}

// Close closes the stream recorder
func (s *StreamRecorder) Close() error {
	// We don't close the Redis client as it may be shared
	return nil
}
