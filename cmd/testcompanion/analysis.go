package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/application"
	appchat "github.com/bryanwahyu/testcompanion/internal/application/chat"
	appcompletion "github.com/bryanwahyu/testcompanion/internal/application/completion"
	"github.com/bryanwahyu/testcompanion/internal/config"
	"github.com/bryanwahyu/testcompanion/internal/infra/ai/openai"
	"github.com/bryanwahyu/testcompanion/internal/infra/httpserver"
	"github.com/bryanwahyu/testcompanion/internal/infra/secretscan"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

var completionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Serve POST /generate-testcases backed by the completion model",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		client, err := newModelClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		svc := &appcompletion.Service{AI: client, Log: log.Named("completion")}
		timeout := cfg.AI.Timeout + 5*time.Second
		router := httpserver.NewCompletionRouter(svc, routerOptions(cfg, log, middleware.NewMetrics(), timeout))

		log.Info("completion service starting",
			zap.Int("port", cfg.Server.CompletionPort),
			zap.String("model", cfg.AI.CompletionModel),
		)
		return serve(ctx, cfg.Server.CompletionPort, router, timeout, log)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Serve POST /analyze backed by the chat model",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		client, err := newModelClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		svc := &appchat.Service{
			AI:      client,
			Secrets: secretscan.Issues,
			Clock:   application.SystemClock{},
			Log:     log.Named("chat"),
		}
		timeout := cfg.AI.Timeout + 5*time.Second
		router := httpserver.NewChatRouter(svc, routerOptions(cfg, log, middleware.NewMetrics(), timeout))

		log.Info("chat service starting",
			zap.Int("port", cfg.Server.ChatPort),
			zap.String("model", cfg.AI.ChatModel),
			zap.Bool("json_mode", cfg.AI.JSONMode),
		)
		return serve(ctx, cfg.Server.ChatPort, router, timeout, log)
	},
}

// newModelClient fails fast when the API key is missing.
func newModelClient(cfg *config.Config) (*openai.Client, error) {
	if err := cfg.ValidateAI(); err != nil {
		return nil, err
	}
	client := openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, &http.Client{Timeout: cfg.AI.Timeout})
	client.CompletionModel = cfg.AI.CompletionModel
	client.ChatModel = cfg.AI.ChatModel
	client.JSONMode = cfg.AI.JSONMode
	return client, nil
}
