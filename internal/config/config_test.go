package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"willows-assistant/internal/usecase"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ADDR", "PORT", "STATIC_DIR", "GEMINI_API_KEY", "GEMINI_API_KEY_PARAM", "GEMINI_MODEL",
		"GEMINI_BASE_URL", "GEMINI_TIMEOUT", "PROMPT_VARIANT", "PROMPT_FILE", "MAX_BODY_BYTES", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, ":8000", cfg.Addr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", "127.0.0.1:9000")
	t.Setenv("STATIC_DIR", "/srv/site")
	t.Setenv("GEMINI_API_KEY", "  AIza-env  ")
	t.Setenv("GEMINI_MODEL", "gemma-3-27b-it")
	t.Setenv("GEMINI_TIMEOUT", "45s")
	t.Setenv("PROMPT_VARIANT", "concise")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/srv/site", cfg.StaticDir)
	assert.Equal(t, "AIza-env", cfg.APIKey)
	assert.Equal(t, "gemma-3-27b-it", cfg.Model)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "concise", cfg.PromptVariant)
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_PortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_TIMEOUT", "0s")
	_, err := Load(New())
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("MAX_BODY_BYTES", "-1")
	_, err = Load(New())
	require.Error(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8000", normalizeAddr("8000"))
	assert.Equal(t, ":8000", normalizeAddr(" :8000 "))
	assert.Equal(t, "0.0.0.0:80", normalizeAddr("0.0.0.0:80"))
	assert.Equal(t, "localhost", normalizeAddr("localhost"))
	assert.Empty(t, normalizeAddr(" "))
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_MODEL=from-dotenv\nPROMPT_VARIANT=concise\n"), 0o600))
	t.Setenv("PROMPT_VARIANT", "verbose")
	// godotenv only fills variables that are unset, so drop the cleared one.
	require.NoError(t, os.Unsetenv("GEMINI_MODEL"))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model)
	assert.Equal(t, "verbose", cfg.PromptVariant)

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestPromptContext(t *testing.T) {
	cfg := Defaults()
	p, err := cfg.PromptContext()
	require.NoError(t, err)
	want, err := usecase.PromptContextForVariant(usecase.PromptVariantVerbose)
	require.NoError(t, err)
	assert.Equal(t, want, p)

	cfg.PromptVariant = "unknown"
	_, err = cfg.PromptContext()
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(file, []byte("You answer for a test clinic.\n"), 0o600))
	cfg.PromptFile = file
	p, err = cfg.PromptContext()
	require.NoError(t, err)
	assert.Equal(t, "You answer for a test clinic.", p.SystemPrompt)

	cfg.PromptFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err = cfg.PromptContext()
	require.Error(t, err)
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("env key wins", func(t *testing.T) {
		cfg := &Config{APIKey: "env", APIKeyParam: "/p"}
		called := false
		require.NoError(t, cfg.ResolveAPIKey(ctx, func(context.Context, string) (string, error) {
			called = true
			return "ssm", nil
		}))
		assert.Equal(t, "env", cfg.APIKey)
		assert.False(t, called)
	})

	t.Run("no parameter configured", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, cfg.ResolveAPIKey(ctx, nil))
		assert.Empty(t, cfg.APIKey)
	})

	t.Run("loaded from parameter", func(t *testing.T) {
		cfg := &Config{APIKeyParam: "/willows/gemini-api-key"}
		require.NoError(t, cfg.ResolveAPIKey(ctx, func(_ context.Context, name string) (string, error) {
			assert.Equal(t, "/willows/gemini-api-key", name)
			return " ssm-key ", nil
		}))
		assert.Equal(t, "ssm-key", cfg.APIKey)
	})

	t.Run("lookup failure leaves key empty", func(t *testing.T) {
		cfg := &Config{APIKeyParam: "/p"}
		err := cfg.ResolveAPIKey(ctx, func(context.Context, string) (string, error) {
			return "", errors.New("AccessDenied")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AccessDenied")
		assert.Empty(t, cfg.APIKey)
	})

	t.Run("missing loader", func(t *testing.T) {
		cfg := &Config{APIKeyParam: "/p"}
		require.Error(t, cfg.ResolveAPIKey(ctx, nil))
	})
}
