// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. The returned Config is immutable by
// convention: load once at startup, hand sections to collaborators, never
// write to it afterwards.
//
// # Configuration Structure
//
// Server settings:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_READ_TIMEOUT="15s"
//	WARDEN_WRITE_TIMEOUT="15s"
//	WARDEN_SHUTDOWN_TIMEOUT="30s"
//
// Identity settings:
//
//	WARDEN_OIDC_ISSUER="https://id.unioneyes.example"
//	WARDEN_OIDC_CLIENT_ID="warden"
//	WARDEN_OIDC_ORG_CLAIM="org_id"
//	WARDEN_OIDC_FETCH_USERINFO="false"
//
// Database and audit sink settings:
//
//	WARDEN_POSTGRES_URL="postgres://localhost/warden"
//	WARDEN_POSTGRES_MAX_CONNS="25"
//	WARDEN_REDIS_URL="redis://localhost:6379"
//	WARDEN_AUDIT_STREAM="warden:decisions"
//	WARDEN_S3_BUCKET="warden-audit-archive"
//	WARDEN_AUDIT_RETENTION_DAYS="90"
//
// Role catalog settings:
//
//	WARDEN_ROLES_FILE="/etc/warden/roles.yaml"
//	WARDEN_ROLES_WATCH="true"
//
// Observability settings:
//
//	WARDEN_LOG_LEVEL="info"  # debug, info, warn, error
//	WARDEN_METRICS_ENABLED="true"
//	WARDEN_METRICS_PORT="9090"
//	WARDEN_OTEL_ENABLED="true"
//	WARDEN_OTEL_ENDPOINT="otel-collector:4317"
//	WARDEN_OTEL_SAMPLE_RATIO="0.1"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Issuer: %s\n", cfg.Identity.OIDCIssuer)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/identity: Uses identity configuration
//   - pkg/audit: Uses database, Redis, and S3 configuration
//   - pkg/observability: Uses observability configuration
package config
