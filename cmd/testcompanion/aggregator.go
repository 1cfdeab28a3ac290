package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/application"
	appchanges "github.com/bryanwahyu/testcompanion/internal/application/changes"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/testcompanion/internal/infra/downstream"
	"github.com/bryanwahyu/testcompanion/internal/infra/httpserver"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

var aggregatorCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "Serve the change ingest API and fan out to the analysis services",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signalContext()
		defer stop()

		db, err := openDB(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		dsOpts := downstream.Options{Timeout: cfg.Downstream.Timeout, MaxRetries: cfg.Downstream.MaxRetries}
		completion := downstream.NewCompletionClient(cfg.Downstream.CompletionURL, dsOpts)
		chat := downstream.NewChatClient(cfg.Downstream.ChatURL, dsOpts)

		analysisCache, cacheCheck, closeCache := newCache(cfg, log)
		defer closeCache()
		artifacts, artifactCheck := newArtifacts(ctx, cfg, log)

		metrics := middleware.NewMetrics()
		svc := &appchanges.Service{
			Changes:    sqlstore.NewChangeRepository(db),
			Users:      sqlstore.NewUserRepository(db),
			Analyses:   sqlstore.NewAnalysisRepository(db),
			Audit:      sqlstore.NewAuditRepository(db),
			Completion: completion,
			Chat:       chat,
			Cache:      analysisCache,
			Artifacts:  artifacts,
			Metrics:    metrics,
			Clock:      application.SystemClock{},
			Log:        log.Named("changes"),
		}

		// both downstream calls run back to back
		timeout := 2*retryBudget(cfg.Downstream.Timeout, cfg.Downstream.MaxRetries) + 10*time.Second
		opts := routerOptions(cfg, log, metrics, timeout)
		dbCheck := &middleware.DatabaseHealthChecker{DB: db}
		opts.Checkers["database"] = dbCheck
		opts.Checkers["completion"] = middleware.CheckerFunc(func(ctx context.Context) error { return completion.Ping(ctx, "/health") })
		opts.Checkers["chat"] = middleware.CheckerFunc(func(ctx context.Context) error { return chat.Ping(ctx, "/health") })
		if cacheCheck != nil {
			opts.Checkers["cache"] = cacheCheck
		}
		if artifactCheck != nil {
			opts.Checkers["storage"] = artifactCheck
		}
		opts.Ready = map[string]middleware.HealthChecker{"database": dbCheck}

		router := httpserver.NewAggregatorRouter(svc, opts, httpserver.IngestOptions{
			APIKeys: cfg.Auth.APIKeys,
			Limiter: middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate),
		})

		log.Info("aggregator starting",
			zap.Int("port", cfg.Server.AggregatorPort),
			zap.String("completion_url", cfg.Downstream.CompletionURL),
			zap.String("chat_url", cfg.Downstream.ChatURL),
			zap.Bool("auth", len(cfg.Auth.APIKeys) > 0),
		)
		return serve(ctx, cfg.Server.AggregatorPort, router, timeout, log)
	},
}
