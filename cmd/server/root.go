package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"willows-assistant/handler"
	"willows-assistant/internal/config"
	"willows-assistant/internal/integrations/gemini"
	"willows-assistant/internal/integrations/paramstore"
	"willows-assistant/internal/logging"
	"willows-assistant/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"addr":           config.KeyAddr,
	"static-dir":     config.KeyStaticDir,
	"model":          config.KeyModel,
	"timeout":        config.KeyTimeout,
	"prompt-variant": config.KeyPromptVar,
	"prompt-file":    config.KeyPromptFile,
	"log-level":      config.KeyLogLevel,
}

func newRootCmd() *cobra.Command {
	v := config.New()
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:   "willows-assistant",
		Short: "Serve the Willows Dental Group site and chat assistant",
		Long: `Serves the static site from the working directory and answers
patient questions at POST /api/worker using the Gemini API.

The Gemini key is read from GEMINI_API_KEY (a .env file is honoured) or,
when GEMINI_API_KEY_PARAM is set, from SSM Parameter Store. Without a key
the assistant still runs and answers with a contact-details fallback.`,
		SilenceUsage: true,
		PreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", d.Addr, "Address to listen on (e.g. :8000, 127.0.0.1:9000)")
	flags.StringP("static-dir", "d", d.StaticDir, "Directory served for GET requests")
	flags.String("model", d.Model, "Gemini model name")
	flags.Duration("timeout", d.Timeout, "Upstream request timeout")
	flags.String("prompt-variant", d.PromptVariant, "Business prompt variant: verbose or concise")
	flags.String("prompt-file", "", "Read the business prompt from this file instead")
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	bindFlags(cmd, v)

	return cmd
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	resolveAPIKey(ctx, cfg, logger)
	if cfg.APIKey == "" {
		logger.Error("GEMINI_API_KEY environment variable is not set; replies will use the fallback message")
	}

	prompt, err := cfg.PromptContext()
	if err != nil {
		return err
	}
	llm, err := gemini.NewClient(
		gemini.WithBaseURL(cfg.BaseURL),
		gemini.WithModel(cfg.Model),
		gemini.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return err
	}
	replies, err := usecase.NewReplyService(llm, prompt, cfg.APIKey, usecase.WithLogger(logger))
	if err != nil {
		return err
	}
	router, err := handler.NewRouter(replies, handler.RouterConfig{
		StaticDir:    cfg.StaticDir,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Leave room for a full upstream call.
		WriteTimeout: cfg.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server running", "url", localURL(cfg.Addr), "static_dir", cfg.StaticDir)
	logger.Info("api endpoint", "url", localURL(cfg.Addr)+handler.ChatPath)
	logger.Info("gemini", "model", cfg.Model, "api_key_configured", cfg.APIKey != "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// resolveAPIKey consults SSM only when no key came from the environment.
func resolveAPIKey(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if cfg.APIKey != "" || cfg.APIKeyParam == "" {
		return
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		return
	}
	store, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		return
	}
	err = cfg.ResolveAPIKey(ctx, func(ctx context.Context, name string) (string, error) {
		return paramstore.LoadAPIKey(ctx, store, name)
	})
	if err != nil {
		logger.Error("failed to resolve Gemini API key", "param", cfg.APIKeyParam, "err", err)
	}
}

// localURL renders a listen address the way a browser on this host reaches it.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
