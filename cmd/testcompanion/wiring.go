package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/config"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/infra/cache"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/migrations"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/mysql"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/postgres"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/sqlite"
	"github.com/bryanwahyu/testcompanion/internal/infra/httpserver"
	"github.com/bryanwahyu/testcompanion/internal/infra/storage"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

const shutdownGrace = 10 * time.Second

// openDB connects to the configured database and applies migrations when
// database.autoMigrate is on.
func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	d := cfg.Database
	if d.AutoMigrate {
		if err := migrateUp(cfg); err != nil {
			return nil, err
		}
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch d.Driver {
	case "mysql":
		db, err = mysql.Connect(ctx, cfg.MySQLDSN(), d.MaxOpenConns, d.MaxIdleConns, d.ConnMaxLifetime)
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.PostgresDSN(), d.MaxOpenConns, d.MaxIdleConns, d.ConnMaxLifetime)
	case "sqlite":
		db, err = sqlite.Connect(ctx, d.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect error: %w", d.Driver, err)
	}
	log.Info("database connected", zap.String("driver", d.Driver))
	return db, nil
}

func migrateUp(cfg *config.Config) error {
	var err error
	switch cfg.Database.Driver {
	case "mysql":
		err = mysql.Migrate(cfg.MySQLDSN())
	case "postgres":
		err = postgres.Migrate(cfg.PostgresDSN())
	case "sqlite":
		err = sqlite.Migrate(cfg.Database.Path)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Database.Driver, err)
	}
	return nil
}

func migrateDown(cfg *config.Config, steps int) error {
	driver, dsn := cfg.Database.Driver, ""
	switch driver {
	case "mysql":
		dsn = cfg.MySQLDSN()
	case "postgres":
		dsn = cfg.PostgresDSN()
	case "sqlite":
		dsn = sqlite.DSN(cfg.Database.Path)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	return migrations.Down(db, driver, steps)
}

// newCache prefers redis when redis.url is set and falls back to process memory.
func newCache(cfg *config.Config, log *zap.Logger) (analysis.Cache, middleware.HealthChecker, func()) {
	if cfg.Redis.URL == "" {
		log.Info("analysis cache: in-memory")
		return cache.NewMemoryCache(cfg.Redis.TTL), nil, func() {}
	}
	rc, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.TTL)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		return cache.NewMemoryCache(cfg.Redis.TTL), nil, func() {}
	}
	log.Info("analysis cache: redis")
	return rc, middleware.CheckerFunc(rc.Ping), func() { _ = rc.Close() }
}

// newArtifacts connects the analysis archive. A disabled or unreachable bucket
// only turns archiving off.
func newArtifacts(ctx context.Context, cfg *config.Config, log *zap.Logger) (analysis.ArtifactStore, middleware.HealthChecker) {
	if !cfg.Minio.Enabled {
		return nil, nil
	}
	store, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.Minio.Endpoint,
		Region:    cfg.Minio.Region,
		Bucket:    cfg.Minio.BucketName,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Warn("minio init error, archiving disabled", zap.Error(err))
		return nil, nil
	}
	log.Info("analysis archive enabled", zap.String("bucket", cfg.Minio.BucketName))
	return store, middleware.CheckerFunc(store.Ping)
}

func routerOptions(cfg *config.Config, log *zap.Logger, metrics *middleware.Metrics, timeout time.Duration) httpserver.Options {
	return httpserver.Options{
		Log:            log,
		Metrics:        metrics,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: timeout,
		Checkers:       map[string]middleware.HealthChecker{},
	}
}

// serve runs handler on port until ctx is cancelled. The write timeout leaves
// room for the slowest request the router allows.
func serve(ctx context.Context, port int, h http.Handler, requestTimeout time.Duration, log *zap.Logger) error {
	srv := httpserver.NewServer(port, h, httpserver.Timeouts{Write: requestTimeout + 5*time.Second}, log)
	return srv.Run(ctx, shutdownGrace)
}

// retryBudget is the worst case for one downstream call: every attempt times
// out and the backoff waits in between.
func retryBudget(perAttempt time.Duration, retries int) time.Duration {
	attempts := time.Duration(max(retries, 0) + 1)
	return perAttempt*attempts + 5*time.Second*attempts
}
