// Package seapp wires together a Storage Element process: configuration,
// infrastructure connections, the domain packages under pkg/, and the HTTP
// server, then runs it until the context is cancelled.
package seapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BigKAA/artStore-sub005/internal/config"
	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/internal/platform"
	"github.com/BigKAA/artStore-sub005/internal/telemetry"
	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/cache"
	"github.com/BigKAA/artStore-sub005/pkg/distlock"
	"github.com/BigKAA/artStore-sub005/pkg/fileengine"
	"github.com/BigKAA/artStore-sub005/pkg/health"
	"github.com/BigKAA/artStore-sub005/pkg/jwtauth"
	"github.com/BigKAA/artStore-sub005/pkg/mode"
	"github.com/BigKAA/artStore-sub005/pkg/model"
	"github.com/BigKAA/artStore-sub005/pkg/registry"
	"github.com/BigKAA/artStore-sub005/pkg/se/httpapi"
	"github.com/BigKAA/artStore-sub005/pkg/wal"
)

// Run reads cfg, connects to infrastructure, and serves the Storage
// Element's HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.SEConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting storage element",
		"element_id", cfg.StorageElementID,
		"mode", cfg.AppMode,
		"listen", cfg.ListenAddr(),
	)

	m := model.Mode(cfg.AppMode)
	controller, err := mode.NewController(m)
	if err != nil {
		return fmt.Errorf("validating configured mode: %w", err)
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunSEMigrations(cfg.DatabaseURL, cfg.MigrationsDir, cfg.DBTablePrefix); err != nil {
		return fmt.Errorf("running storage element migrations: %w", err)
	}
	logger.Info("storage element migrations applied", "prefix", cfg.DBTablePrefix)

	reg := registry.New(rdb)
	if prev, found, err := reg.Get(ctx, cfg.StorageElementID); err != nil {
		logger.Warn("checking previous registry record failed, skipping transition check", "error", err)
	} else if found {
		if err := mode.ValidateStartupTransition(prev.Mode, m); err != nil {
			return err
		}
	}

	be, err := newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("constructing storage backend: %w", err)
	}

	walStore := wal.NewStore(db, cfg.DBTablePrefix)
	cacheStore := cache.NewStore(db, cfg.DBTablePrefix)

	cacheLock := distlock.New(rdb, "se:"+cfg.StorageElementID+":cache_lock")
	ttlHours := ttlHoursFor(cfg, controller)
	synchronizer := cache.NewSynchronizer(cacheStore, cfg.StorageBasePath, ttlHours, cacheLock, logger)
	synchronizer.FullRebuildTimeout = time.Duration(cfg.CacheRebuildTimeoutMinutes) * time.Minute

	engine := &fileengine.Engine{
		Backend:       be,
		WAL:           walStore,
		Cache:         cacheStore,
		Sync:          synchronizer,
		Mode:          controller,
		MaxObjectSize: cfg.StorageMaxSize,
		RetentionDays: cfg.StorageRetentionDays,
		CacheTTLHours: ttlHours,
		Logger:        logger,
	}

	reportInterval := time.Duration(cfg.HealthReportInterval) * time.Second
	reporter := health.NewReporter(cfg.StorageElementID, m, cfg.Endpoint(), cfg.StoragePriority, be, reg, reportInterval, logger)
	go reporter.Run(ctx)

	if cfg.WALEnabled {
		go runWALPurgeLoop(ctx, walStore, time.Duration(cfg.WALRetentionHours)*time.Hour, logger)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	keys := jwtauth.NewRemoteKeySetCache(httpClient, cfg.AdminBaseURL)
	if err := keys.Refresh(ctx); err != nil {
		logger.Warn("initial jwt key fetch from admin failed, will retry on the refresh interval", "error", err)
	}
	go keys.Run(ctx, time.Minute, func(err error) {
		logger.Warn("refreshing jwt keys from admin failed", "error", err)
	})

	authenticator := httpapi.NewAuthenticator(keys)

	info := newInfoService(cfg, controller, reporter, cacheStoreCounter{store: cacheStore})

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.SEMetrics()...)

	srv := httpserver.New(httpserver.Options{
		Logger:      logger,
		MetricsReg:  metricsReg,
		CORSOrigins: []string{"*"},
		Pingers: map[string]httpserver.Pinger{
			"database": func(ctx context.Context) error { return db.Ping(ctx) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	handler := &httpapi.Handler{
		Engine: engine,
		Sync:   synchronizer,
		Info:   info,
		GC:     be,
		Logger: logger,
	}
	httpapi.Mount(srv.Router, handler, authenticator)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storage element http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down storage element")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newBackend constructs the configured storage backend. "local" roots a
// filesystem backend at StorageBasePath; "s3" builds an AWS SDK v2 client,
// optionally pointed at a custom (MinIO-style) endpoint.
func newBackend(ctx context.Context, cfg *config.SEConfig) (backend.Backend, error) {
	switch model.StorageType(cfg.StorageType) {
	case model.StorageLocal, "":
		return backend.NewLocal(cfg.StorageBasePath), nil
	case model.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = &cfg.S3Endpoint
			}
			o.UsePathStyle = cfg.S3ForcePathStyle
		})
		return backend.NewS3(client, cfg.S3Bucket, cfg.StorageMaxSize), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// ttlHoursFor returns a closure resolving the cache-row TTL for the SE's
// fixed mode (§4.9), so fileengine.Engine and cache.Synchronizer read the
// same per-mode value without either hardcoding it.
func ttlHoursFor(cfg *config.SEConfig, controller *mode.Controller) func() int {
	return func() int {
		switch controller.Mode() {
		case model.ModeEdit:
			return cfg.CacheTTLHoursEdit
		case model.ModeRW:
			return cfg.CacheTTLHoursRW
		case model.ModeRO:
			return cfg.CacheTTLHoursRO
		case model.ModeAR:
			return cfg.CacheTTLHoursAR
		default:
			return cfg.CacheTTLHoursRW
		}
	}
}

// runWALPurgeLoop periodically deletes terminal WAL rows older than
// retention (§4.2), on a tenth of the retention window so the table never
// grows unbounded between restarts.
func runWALPurgeLoop(ctx context.Context, store *wal.Store, retention time.Duration, logger *slog.Logger) {
	interval := retention / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			n, err := store.PurgeTerminalOlderThan(ctx, cutoff)
			if err != nil {
				logger.Error("purging terminal wal entries", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged terminal wal entries", "count", n)
			}
		}
	}
}
