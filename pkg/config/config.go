package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/unioneyes/warden/pkg/observability"
)

// Config holds all application configuration. Load it once at startup
// and treat it as read-only afterwards; collaborators receive copies of
// the sections they need, never a shared mutable handle.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Identity provider configuration
	Identity IdentityConfig

	// Database configuration (membership + audit store)
	Database DatabaseConfig

	// Redis configuration (audit stream sink)
	Redis RedisConfig

	// Archive configuration (S3 audit archive)
	Archive ArchiveConfig

	// Role catalog configuration
	Roles RolesConfig

	// Audit trail configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// IdentityConfig holds OIDC resource-server settings
type IdentityConfig struct {
	// OIDCIssuer is the issuer URL used for discovery
	OIDCIssuer string

	// OIDCClientID is the audience expected in presented tokens
	OIDCClientID string

	// OIDCSkipIssuerCheck relaxes issuer validation for proxied IdPs
	OIDCSkipIssuerCheck bool

	// OrganizationClaim names the claim carrying the organization ID
	OrganizationClaim string

	// FetchUserinfo enriches cached profiles from the userinfo endpoint
	FetchUserinfo bool

	// ProfileCacheSize bounds the in-memory profile cache
	ProfileCacheSize int
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis settings for the audit stream sink. The sink
// is only constructed when URL is set.
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	Stream       string
	StreamMaxLen int64
}

// ArchiveConfig holds S3 settings for the audit archive
type ArchiveConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// RolesConfig holds role catalog settings
type RolesConfig struct {
	// CatalogPath points at a YAML catalog file; empty uses the
	// built-in hierarchy
	CatalogPath string

	// Watch validates the catalog file on change and logs drift. The
	// running catalog stays immutable; a restart applies the new file.
	Watch bool
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// RetentionDays is how long decision records are kept
	RetentionDays int

	// ArchiveEnabled archives expired records to S3 before purging
	ArchiveEnabled bool

	// SweepBatchSize bounds how many records one archive object holds
	SweepBatchSize int

	// FilePath enables the local file sink when set (dev fallback)
	FilePath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
	MetricsPort    string // Prometheus scrapes a dedicated listener

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Identity:      loadIdentityConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Archive:       loadArchiveConfig(),
		Roles:         loadRolesConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
		Port:            getEnv("WARDEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadIdentityConfig loads identity provider configuration from environment
func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		OIDCIssuer:          getEnv("WARDEN_OIDC_ISSUER", ""),
		OIDCClientID:        getEnv("WARDEN_OIDC_CLIENT_ID", ""),
		OIDCSkipIssuerCheck: getEnvBool("WARDEN_OIDC_SKIP_ISSUER_CHECK", false),
		OrganizationClaim:   getEnv("WARDEN_OIDC_ORG_CLAIM", "org_id"),
		FetchUserinfo:       getEnvBool("WARDEN_OIDC_FETCH_USERINFO", false),
		ProfileCacheSize:    getEnvInt("WARDEN_OIDC_PROFILE_CACHE_SIZE", 1024),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("WARDEN_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("WARDEN_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("WARDEN_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("WARDEN_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          getEnv("WARDEN_REDIS_URL", ""),
		Password:     getEnv("WARDEN_REDIS_PASSWORD", ""),
		DB:           getEnvInt("WARDEN_REDIS_DB", 0),
		PoolSize:     getEnvInt("WARDEN_REDIS_POOL_SIZE", 10),
		Stream:       getEnv("WARDEN_AUDIT_STREAM", "warden:decisions"),
		StreamMaxLen: getEnvInt64("WARDEN_AUDIT_STREAM_MAX_LEN", 100000),
	}
}

// loadArchiveConfig loads S3 archive configuration from environment
func loadArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Endpoint:     getEnv("WARDEN_S3_ENDPOINT", ""),
		Region:       getEnv("WARDEN_S3_REGION", "us-east-1"),
		Bucket:       getEnv("WARDEN_S3_BUCKET", ""),
		Prefix:       getEnv("WARDEN_S3_PREFIX", "audit"),
		AccessKey:    getEnv("WARDEN_S3_ACCESS_KEY", ""),
		SecretKey:    getEnv("WARDEN_S3_SECRET_KEY", ""),
		UsePathStyle: getEnvBool("WARDEN_S3_USE_PATH_STYLE", false),
	}
}

// loadRolesConfig loads role catalog configuration from environment
func loadRolesConfig() RolesConfig {
	return RolesConfig{
		CatalogPath: getEnv("WARDEN_ROLES_FILE", ""),
		Watch:       getEnvBool("WARDEN_ROLES_WATCH", false),
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionDays:  getEnvInt("WARDEN_AUDIT_RETENTION_DAYS", 90),
		ArchiveEnabled: getEnvBool("WARDEN_AUDIT_ARCHIVE_ENABLED", false),
		SweepBatchSize: getEnvInt("WARDEN_AUDIT_SWEEP_BATCH_SIZE", 1000),
		FilePath:       getEnv("WARDEN_AUDIT_FILE", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("WARDEN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("WARDEN_METRICS_ENABLED", true),
		MetricsPort:        getEnv("WARDEN_METRICS_PORT", "9090"),
		OTelEnabled:        getEnvBool("WARDEN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("WARDEN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("WARDEN_OTEL_SERVICE_NAME", "warden"),
		OTelServiceVersion: getEnv("WARDEN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("WARDEN_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("WARDEN_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	// Validate identity config
	if c.Identity.OIDCIssuer == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.Identity.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required")
	}
	if c.Identity.ProfileCacheSize <= 0 {
		return fmt.Errorf("profile cache size must be positive")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate audit config
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}
	if c.Audit.ArchiveEnabled && c.Archive.Bucket == "" {
		return fmt.Errorf("S3 bucket is required when audit archiving is enabled")
	}

	// Validate observability config
	if c.Observability.MetricsEnabled && c.Observability.MetricsPort == "" {
		return fmt.Errorf("metrics port is required when metrics are enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r <= 0 || r > 1 {
		return fmt.Errorf("OTel sample ratio must be in (0, 1], got %v", r)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
