package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var archiveTracer = otel.Tracer("github.com/unioneyes/warden/pkg/audit")

// Archiver moves expired decision records to long-term storage
type Archiver interface {
	// Archive stores a batch of records and returns the storage key
	Archive(ctx context.Context, records []*DecisionRecord, compress bool) (string, error)
}

// ArchiveConfig configures the S3 archiver
type ArchiveConfig struct {
	Bucket       string
	Prefix       string // Key prefix, e.g. "audit"
	Region       string
	Endpoint     string // Custom endpoint (for MinIO)
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Archiver archives decision records to S3 as newline-delimited JSON
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver creates a new S3-backed archiver
func NewS3Archiver(ctx context.Context, cfg ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "audit"
	}

	// Configure AWS SDK
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Use static credentials (for MinIO or AWS with explicit keys)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Use default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{
		client: s3Client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive uploads a batch of decision records as one NDJSON object,
// keyed by the timestamp of the oldest record in the batch
func (a *S3Archiver) Archive(ctx context.Context, records []*DecisionRecord, compress bool) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	ctx, span := archiveTracer.Start(ctx, "Audit.Archive",
		trace.WithAttributes(
			attribute.String("s3.bucket", a.bucket),
			attribute.Int("records.count", len(records)),
			attribute.Bool("archive.compressed", compress),
		),
	)
	defer span.End()

	data, err := exportNDJSON(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode records")
		return "", err
	}

	contentType := "application/x-ndjson"
	suffix := "ndjson"
	if compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to compress records")
			return "", fmt.Errorf("failed to compress records: %w", err)
		}
		if err := gz.Close(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to compress records")
			return "", fmt.Errorf("failed to compress records: %w", err)
		}
		data = buf.Bytes()
		contentType = "application/gzip"
		suffix = "ndjson.gz"
	}

	oldest := records[0].Timestamp
	key := fmt.Sprintf("%s/%s/decisions-%d.%s",
		a.prefix,
		oldest.UTC().Format("2006/01/02"),
		time.Now().UnixNano(),
		suffix,
	)
	span.SetAttributes(
		attribute.String("s3.key", key),
		attribute.Int("content.size", len(data)),
	)

	// Calculate SHA256 checksum
	hash := sha256.Sum256(data)
	checksum := hex.EncodeToString(hash[:])

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"checksum-sha256": checksum,
		},
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload archive")
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	span.SetStatus(codes.Ok, "archive uploaded")
	return key, nil
}

// HealthCheck verifies the archive bucket is reachable
func (a *S3Archiver) HealthCheck(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})

	if err != nil {
		return fmt.Errorf("archive health check failed: %w", err)
	}

	return nil
}
