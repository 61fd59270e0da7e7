package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/observability"
)

var (
	dbURL         = flag.String("db-url", getEnv("WARDEN_POSTGRES_URL", "postgres://localhost/warden?sslmode=disable"), "PostgreSQL connection URL")
	schedule      = flag.String("schedule", getEnv("WARDEN_SWEEP_SCHEDULE", "30 2 * * *"), "Cron schedule for the retention sweep (default: 02:30 UTC)")
	retentionDays = flag.Int("retention-days", getEnvInt("WARDEN_AUDIT_RETENTION_DAYS", 90), "Days to keep decision records")
	batchSize     = flag.Int("batch-size", getEnvInt("WARDEN_AUDIT_SWEEP_BATCH_SIZE", 1000), "Records per archive batch")
	archive       = flag.Bool("archive", getEnvBool("WARDEN_AUDIT_ARCHIVE_ENABLED", false), "Archive expired records to S3 before purging")
	compress      = flag.Bool("compress", true, "Gzip archived batches")
	s3Bucket      = flag.String("s3-bucket", getEnv("WARDEN_S3_BUCKET", ""), "S3 bucket for archived records")
	s3Prefix      = flag.String("s3-prefix", getEnv("WARDEN_S3_PREFIX", "audit"), "S3 key prefix")
	s3Region      = flag.String("s3-region", getEnv("WARDEN_S3_REGION", "us-east-1"), "S3 region")
	s3Endpoint    = flag.String("s3-endpoint", getEnv("WARDEN_S3_ENDPOINT", ""), "Custom S3 endpoint (for MinIO)")
	s3PathStyle   = flag.Bool("s3-path-style", getEnvBool("WARDEN_S3_USE_PATH_STYLE", false), "Use path-style S3 addressing")
	runOnce       = flag.Bool("run-once", false, "Run one sweep and exit (for manual purges and backfills)")
	logLevel      = flag.String("log-level", getEnv("WARDEN_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// The sweeper issues one query at a time; a small pool is plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	recorder, err := audit.NewDBRecorder(db)
	if err != nil {
		logger.Fatalf("Failed to initialize decision store: %v", err)
	}

	policy := audit.RetentionPolicy{
		RetentionDays:   *retentionDays,
		ArchiveEnabled:  *archive,
		CompressArchive: *compress,
		BatchSize:       *batchSize,
	}

	var archiver audit.Archiver
	if *archive {
		s3Archiver, err := audit.NewS3Archiver(context.Background(), audit.ArchiveConfig{
			Bucket:       *s3Bucket,
			Prefix:       *s3Prefix,
			Region:       *s3Region,
			Endpoint:     *s3Endpoint,
			AccessKey:    os.Getenv("WARDEN_S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("WARDEN_S3_SECRET_KEY"),
			UsePathStyle: *s3PathStyle,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize S3 archiver: %v", err)
		}
		archiver = s3Archiver
	}

	sweepLogger := observability.NewLogger(observability.ParseLevel(*logLevel), os.Stdout)
	sweeper, err := audit.NewSweeper(recorder, archiver, policy, sweepLogger, nil)
	if err != nil {
		logger.Fatalf("Failed to initialize sweeper: %v", err)
	}

	// Run once mode (for manual purges or verifying a new archive bucket)
	if *runOnce {
		if err := runSweep(sweeper, logger); err != nil {
			logger.Fatalf("Sweep failed: %v", err)
		}
		logger.Info("Sweep completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(*schedule, func() {
		if err := runSweep(sweeper, logger); err != nil {
			logger.Errorf("Scheduled sweep failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule retention sweep: %v", err)
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule":       *schedule,
		"retention_days": *retentionDays,
		"archive":        *archive,
	}).Info("Warden retention sweeper started")

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down, waiting for any running sweep to finish")

	// Stop the cron scheduler and let an in-flight sweep drain
	ctx := c.Stop()
	<-ctx.Done()

	logger.Info("Retention sweeper stopped")
}

func runSweep(sweeper *audit.Sweeper, logger *logrus.Logger) error {
	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"cutoff":   result.Cutoff.Format(time.RFC3339),
		"archived": result.Archived,
		"purged":   result.Purged,
		"objects":  len(result.Objects),
	}).Info("Sweep finished")
	return nil
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
