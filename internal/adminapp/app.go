// Package adminapp wires together the Admin control-plane process:
// configuration, infrastructure connections, the admin domain packages,
// and the HTTP server, then runs it until the context is cancelled.
package adminapp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BigKAA/artStore-sub005/internal/config"
	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/internal/platform"
	"github.com/BigKAA/artStore-sub005/internal/telemetry"
	"github.com/BigKAA/artStore-sub005/pkg/admin/adminuser"
	adminauth "github.com/BigKAA/artStore-sub005/pkg/admin/auth"
	"github.com/BigKAA/artStore-sub005/pkg/admin/fileregistry"
	"github.com/BigKAA/artStore-sub005/pkg/admin/gc"
	adminhttpapi "github.com/BigKAA/artStore-sub005/pkg/admin/httpapi"
	"github.com/BigKAA/artStore-sub005/pkg/admin/jwtkeys"
	"github.com/BigKAA/artStore-sub005/pkg/admin/ops"
	"github.com/BigKAA/artStore-sub005/pkg/admin/serviceaccount"
	"github.com/BigKAA/artStore-sub005/pkg/admin/storageelement"
	"github.com/BigKAA/artStore-sub005/pkg/admin/tokenservice"
	"github.com/BigKAA/artStore-sub005/pkg/distlock"
)

// Run reads cfg, connects to infrastructure, and serves the Admin control
// plane's HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.AdminConfig) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting admin control plane", "listen", cfg.ListenAddr())

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

	if err := platform.RunAdminMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running admin migrations: %w", err)
	}
	logger.Info("admin migrations applied")

	keyStore := jwtkeys.NewStore(db)
	keyLock := distlock.New(rdb, jwtkeys.LockKey)
	rotationInterval := time.Duration(cfg.JWTKeyRotationHours) * time.Hour
	safetyWindow := time.Duration(cfg.KeyRotationSafetyWindowHours) * time.Hour
	rotator := jwtkeys.NewRotator(keyStore, keyLock, rotationInterval, safetyWindow, logger)

	existingKeys, err := keyStore.All(ctx)
	if err != nil {
		return fmt.Errorf("listing jwt keys: %w", err)
	}
	if len(existingKeys) == 0 {
		logger.Info("no jwt signing keys found, bootstrapping the first one")
		if err := rotator.Rotate(ctx, time.Now().UTC()); err != nil {
			return fmt.Errorf("bootstrapping jwt signing key: %w", err)
		}
	}
	go rotator.Run(ctx)

	keys := jwtkeys.NewLocalKeySetCache(keyStore)
	if err := keys.Refresh(ctx); err != nil {
		return fmt.Errorf("loading jwt key set: %w", err)
	}

	authenticator := adminauth.NewAuthenticator(keys)

	notifier := ops.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)

	serviceAccountService := serviceaccount.NewService(db, logger)
	if err := bootstrapServiceAccount(ctx, serviceAccountService, cfg, logger); err != nil {
		return fmt.Errorf("bootstrapping initial service account: %w", err)
	}
	serviceAccountHandler := serviceaccount.NewHandler(logger, db, cfg.InitialAccountEnv)

	adminUserService := adminuser.NewService(db, logger)
	if err := bootstrapAdminUser(ctx, adminUserService, cfg, logger); err != nil {
		return fmt.Errorf("bootstrapping initial admin user: %w", err)
	}
	adminUserHandler := adminuser.NewHandler(logger, db)

	elementStore := storageelement.NewStore(db)
	storageElementService := storageelement.NewService(db, notifier, logger)
	storageElementHandler := storageelement.NewHandler(logger, db, notifier)
	syncInterval := time.Duration(cfg.StorageElementSyncIntervalSeconds) * time.Second
	go storageElementService.Run(ctx, syncInterval)

	registryStore := fileregistry.NewStore(db)
	seClient := gc.NewSEClient(cacheBackedIssuer{keys: keys})
	collector := gc.NewCollector(registryStore, elementStore, seClient, notifier, logger)
	gcInterval := time.Duration(cfg.SchedulerGCIntervalHours) * time.Hour
	go collector.Run(ctx, gcInterval)

	tokens := tokenservice.NewService(serviceAccountService, adminUserService, keys)

	handler := adminhttpapi.NewHandler(
		logger,
		tokens,
		adminUserService,
		serviceAccountHandler,
		adminUserHandler,
		storageElementHandler,
		elementStore,
		keys,
		keyStore,
		rotator,
	)

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.AdminMetrics()...)

	srv := httpserver.New(httpserver.Options{
		Logger:      logger,
		MetricsReg:  metricsReg,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Pingers: map[string]httpserver.Pinger{
			"database": func(ctx context.Context) error { return db.Ping(ctx) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})
	adminhttpapi.Mount(srv.Router, handler, authenticator)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down admin control plane")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// bootstrapServiceAccount provisions the first ADMIN-role service account
// when none exist yet, so there is always a way to call the SE/Admin APIs
// on a brand new deployment. The generated secret is logged once; it is
// never recoverable afterward (§4.13).
func bootstrapServiceAccount(ctx context.Context, svc *serviceaccount.Service, cfg *config.AdminConfig, logger *slog.Logger) error {
	existing, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	created, err := svc.Create(ctx, serviceaccount.CreateRequest{
		Name:      cfg.InitialAccountName,
		Role:      "ADMIN",
		RateLimit: 1000,
	}, cfg.InitialAccountEnv)
	if err != nil {
		return err
	}

	logger.Warn("bootstrapped initial service account, record these credentials now",
		"client_id", created.ClientID,
		"client_secret", created.ClientSecret,
	)
	return nil
}

// bootstrapAdminUser provisions the first super_admin AdminUser when none
// exist yet. If INITIAL_ADMIN_PASSWORD is unset, a random one is generated
// and logged once.
func bootstrapAdminUser(ctx context.Context, svc *adminuser.Service, cfg *config.AdminConfig, logger *slog.Logger) error {
	existing, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	password := cfg.InitialAdminPassword
	generated := password == ""
	if generated {
		var err error
		password, err = generateRandomPassword()
		if err != nil {
			return fmt.Errorf("generating initial admin password: %w", err)
		}
	}

	_, err = svc.Create(ctx, adminuser.CreateRequest{
		Username: cfg.InitialAdminUsername,
		Email:    cfg.InitialAdminEmail,
		Password: password,
		Role:     string(adminuser.RoleSuperAdmin),
	})
	if err != nil {
		return err
	}

	if generated {
		logger.Warn("bootstrapped initial admin user with a generated password, record it now",
			"username", cfg.InitialAdminUsername,
			"password", password,
		)
	} else {
		logger.Info("bootstrapped initial admin user", "username", cfg.InitialAdminUsername)
	}
	return nil
}

func generateRandomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
