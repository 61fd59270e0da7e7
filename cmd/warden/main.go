package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unioneyes/warden/pkg/api"
	"github.com/unioneyes/warden/pkg/audit"
	"github.com/unioneyes/warden/pkg/authz"
	"github.com/unioneyes/warden/pkg/config"
	"github.com/unioneyes/warden/pkg/identity"
	"github.com/unioneyes/warden/pkg/membership"
	"github.com/unioneyes/warden/pkg/observability"
	"github.com/unioneyes/warden/pkg/roles"
)

const dbStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	// OpenTelemetry first so every later constructor picks up the global
	// providers.
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		log.Fatalf("Failed to create OpenTelemetry instruments: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Database backs both membership reads and the audit store
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	resolver := membership.NewSQLResolver(db)
	if err := resolver.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure membership schema: %v", err)
	}

	catalog, err := roles.LoadCatalogOrDefault(cfg.Roles.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load role catalog: %v", err)
	}
	if cfg.Roles.Watch && cfg.Roles.CatalogPath != "" {
		go watchCatalog(cfg.Roles.CatalogPath, logger, metrics)
	}

	provider, err := identity.NewOIDCProvider(ctx, identity.OIDCConfig{
		IssuerURL:         cfg.Identity.OIDCIssuer,
		ClientID:          cfg.Identity.OIDCClientID,
		SkipIssuerCheck:   cfg.Identity.OIDCSkipIssuerCheck,
		OrganizationClaim: cfg.Identity.OrganizationClaim,
		FetchUserinfo:     cfg.Identity.FetchUserinfo,
		ProfileCacheSize:  cfg.Identity.ProfileCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to construct OIDC provider: %v", err)
	}

	// The database sink is the source of truth; stream and file sinks are
	// optional mirrors.
	dbRecorder, err := audit.NewDBRecorder(db)
	if err != nil {
		log.Fatalf("Failed to construct audit DB recorder: %v", err)
	}
	recorders := []audit.Recorder{dbRecorder}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		if cfg.Redis.PoolSize > 0 {
			opts.PoolSize = cfg.Redis.PoolSize
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Stream writes are best effort; readiness reports the outage
			logger.WithError(err).Warn("Redis unreachable at startup, stream sink degraded")
		}

		streamRecorder, err := audit.NewStreamRecorder(redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
		if err != nil {
			log.Fatalf("Failed to construct audit stream recorder: %v", err)
		}
		recorders = append(recorders, streamRecorder)
	}

	if cfg.Audit.FilePath != "" {
		fileRecorder, err := audit.NewFileRecorder(audit.FileRecorderConfig{
			BasePath: cfg.Audit.FilePath,
			Rotate:   true,
		})
		if err != nil {
			log.Fatalf("Failed to construct audit file recorder: %v", err)
		}
		recorders = append(recorders, fileRecorder)
	}

	recorder := audit.NewMultiRecorder(recorders...).WithFailureHandler(func(err error) {
		logger.WithError(err).Error("Audit sink write failed")
	})

	engine, err := authz.New(authz.Config{
		Identity:   provider,
		Membership: resolver,
		Catalog:    catalog,
		Recorder:   recorder,
		Logger:     logger,
		Metrics:    metrics,
		OTel:       otelMetrics,
	})
	if err != nil {
		log.Fatalf("Failed to construct decision engine: %v", err)
	}

	health := observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)

	server, err := api.NewServer(api.Config{
		Engine:     engine,
		Provider:   provider,
		Health:     health,
		AuditStore: dbRecorder,
		Metrics:    metrics,
		OTel:       otelMetrics,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to construct API server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// The scrape endpoint lives on its own listener so member traffic and
	// operational traffic never share a port.
	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(metricsMux, registry)
		observability.RegisterHealthRoutes(metricsMux, health)
		metricsServer = &http.Server{
			Addr:    ":" + cfg.Observability.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			logger.Infof("Metrics listener on :%s", cfg.Observability.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics listener failed")
			}
		}()
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	go collectDBStats(statsCtx, metrics, db)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("metrics-listener", func(ctx context.Context) error {
		if metricsServer == nil {
			return nil
		}
		return metricsServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc("db-stats", func(context.Context) error {
		stopStats()
		return nil
	})
	shutdown.RegisterShutdownFunc("audit-recorder", func(context.Context) error {
		return recorder.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc("database", func(context.Context) error {
		return db.Close()
	})
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	go func() {
		logger.Infof("Warden authorization service listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			shutdown.Stop()
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// collectDBStats feeds connection pool gauges until the context ends.
func collectDBStats(ctx context.Context, metrics *observability.Metrics, db *sql.DB) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.CollectDBStats(db)
		}
	}
}

// watchCatalog validates the role catalog file whenever it changes. The
// running catalog is immutable once injected, so a changed file only takes
// effect on restart; the watcher exists to surface bad edits immediately
// instead of at the next deploy.
func watchCatalog(path string, logger *observability.Logger, metrics *observability.Metrics) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Error("Failed to create catalog watcher")
		return
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops
	// watches registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.WithError(err).Error("Failed to watch catalog directory")
		return
	}

	clean := filepath.Clean(path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != clean || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			metrics.CatalogFileChanges.Inc()
			if _, err := roles.LoadCatalog(path); err != nil {
				logger.WithError(err).Warnf("Role catalog file %s is invalid; the running catalog is unaffected", path)
			} else {
				logger.Infof("Role catalog file %s changed; restart to apply", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("Catalog watcher error")
		}
	}
}
