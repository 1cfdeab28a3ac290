package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/config"
	"github.com/bryanwahyu/testcompanion/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "testcompanion",
	Short: "testcompanion records code changes and asks language models for tests and risk analysis.",
	Long: `testcompanion runs one process per subcommand: the aggregator that records changes,
the completion and chat analysis services, and the repository watcher.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or config.yaml)")
	rootCmd.AddCommand(aggregatorCmd, completionCmd, chatCmd, watcherCmd, migrateCmd)
}

// resolveConfigPath: --config, then CONFIG_PATH, then config.yaml
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config load error: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Debug("config loaded", zap.String("path", path), zap.String("db_driver", cfg.Database.Driver))
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
