package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"willows-assistant/handler"
	"willows-assistant/internal/config"
	"willows-assistant/internal/integrations/gemini"
	"willows-assistant/internal/integrations/paramstore"
	"willows-assistant/internal/logging"
	"willows-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (environment only) ----
	cfg, err := config.Load(config.New())
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		slog.Error("failed to create logger", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// ---- Credential ----
	if cfg.APIKey == "" && cfg.APIKeyParam != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		err = cfg.ResolveAPIKey(ctx, func(ctx context.Context, name string) (string, error) {
			return paramstore.LoadAPIKey(ctx, ssmClient, name)
		})
		if err != nil {
			slog.Error("failed to resolve Gemini API key", "param", cfg.APIKeyParam, "err", err)
		}
	}
	if cfg.APIKey == "" {
		slog.Error("GEMINI_API_KEY environment variable is not set")
	}

	// ---- Clients ----
	prompt, err := cfg.PromptContext()
	if err != nil {
		slog.Error("failed to build prompt", "err", err)
		os.Exit(1)
	}
	geminiClient, err := gemini.NewClient(
		gemini.WithBaseURL(cfg.BaseURL),
		gemini.WithModel(cfg.Model),
		gemini.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	replyService, err := usecase.NewReplyService(geminiClient, prompt, cfg.APIKey, usecase.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create reply service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(replyService, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
