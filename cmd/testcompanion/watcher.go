package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/application"
	appwatcher "github.com/bryanwahyu/testcompanion/internal/application/watcher"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/testcompanion/internal/infra/downstream"
	"github.com/bryanwahyu/testcompanion/internal/infra/fswatch"
	"github.com/bryanwahyu/testcompanion/internal/infra/httpserver"
	"github.com/bryanwahyu/testcompanion/internal/infra/livefeed"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

var watcherCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Watch registered git repositories and forward changes to the aggregator",
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

		wc := cfg.Watcher
		forwarder := downstream.NewForwarder(wc.AggregatorURL, downstream.Options{
			Timeout:         wc.ForwardTimeout,
			MaxRetries:      max(wc.ForwardRetries-1, 0),
			InitialInterval: 2 * time.Second,
			APIKey:          wc.APIKey,
		})
		hub := livefeed.NewHub(wc.Heartbeat, log.Named("livefeed"))
		defer hub.Close()

		metrics := middleware.NewMetrics()
		svc := &appwatcher.Service{
			Repos:     sqlstore.NewRepositoryStore(db),
			Changes:   sqlstore.NewFileChangeStore(db),
			Users:     sqlstore.NewUserRepository(db),
			Forwarder: forwarder,
			Feed:      hub,
			NewWatcher: fswatch.Factory(fswatch.Options{
				Debounce: wc.Debounce,
				Log:      log.Named("fswatch"),
			}),
			Validate:        fswatch.ValidateRepository,
			MaxRepositories: wc.MaxRepositories,
			PendingWorkers:  wc.PendingWorkers,
			Metrics:         metrics,
			Clock:           application.SystemClock{},
			Log:             log.Named("watcher"),
		}
		if err := svc.Resume(ctx); err != nil {
			log.Warn("resume watchers failed", zap.Error(err))
		}
		defer svc.Shutdown()

		timeout := retryBudget(wc.ForwardTimeout, wc.ForwardRetries) + 30*time.Second
		opts := routerOptions(cfg, log, metrics, timeout)
		dbCheck := &middleware.DatabaseHealthChecker{DB: db}
		opts.Checkers["database"] = dbCheck
		opts.Checkers["aggregator"] = middleware.CheckerFunc(func(ctx context.Context) error { return forwarder.Ping(ctx, "/health") })
		opts.Ready = map[string]middleware.HealthChecker{"database": dbCheck}
		router := httpserver.NewWatcherRouter(svc, hub, opts)

		log.Info("watcher starting",
			zap.Int("port", cfg.Server.WatcherPort),
			zap.String("aggregator_url", wc.AggregatorURL),
			zap.Int("max_repositories", wc.MaxRepositories),
		)
		return serve(ctx, cfg.Server.WatcherPort, router, timeout, log)
	},
}
