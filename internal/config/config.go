// Package config loads process configuration once at startup.
//
// Values are resolved by viper in priority order: bound command-line flags,
// environment variables, an optional .env file in the working directory,
// then defaults. The Gemini credential may also come from SSM Parameter
// Store; an environment value always wins.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"willows-assistant/internal/integrations/gemini"
	"willows-assistant/internal/usecase"
)

const (
	KeyAddr         = "addr"
	KeyStaticDir    = "static_dir"
	KeyAPIKey       = "gemini.api_key"
	KeyAPIKeyParam  = "gemini.api_key_param"
	KeyModel        = "gemini.model"
	KeyBaseURL      = "gemini.base_url"
	KeyTimeout      = "gemini.timeout"
	KeyPromptVar    = "prompt.variant"
	KeyPromptFile   = "prompt.file"
	KeyMaxBodyBytes = "max_body_bytes"
	KeyLogLevel     = "log_level"
)

// Config holds all configuration values for the service.
type Config struct {
	// Addr is the listen address of the HTTP server. Defaults to ":8000".
	Addr string
	// StaticDir is the directory served for GET requests. Defaults to ".".
	StaticDir string

	// APIKey is the Gemini credential. Empty degrades every reply to the
	// unavailable fallback.
	APIKey string
	// APIKeyParam names an SSM parameter holding the credential, used only
	// when APIKey is empty.
	APIKeyParam string
	Model       string
	BaseURL     string
	// Timeout bounds each upstream call. Defaults to 30s.
	Timeout time.Duration

	PromptVariant string
	PromptFile    string

	MaxBodyBytes int64
	LogLevel     string
}

// Defaults returns a Config struct with all default values set.
func Defaults() *Config {
	return &Config{
		Addr:          ":8000",
		StaticDir:     ".",
		Model:         gemini.DefaultModel,
		BaseURL:       gemini.DefaultBaseURL,
		Timeout:       gemini.DefaultTimeout,
		PromptVariant: usecase.PromptVariantVerbose,
		MaxBodyBytes:  1 << 20,
		LogLevel:      "info",
	}
}

// New returns a viper instance with defaults and environment bindings set.
// Callers bind flags before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyStaticDir, d.StaticDir)
	v.SetDefault(KeyModel, d.Model)
	v.SetDefault(KeyBaseURL, d.BaseURL)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyPromptVar, d.PromptVariant)
	v.SetDefault(KeyMaxBodyBytes, d.MaxBodyBytes)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	bindEnv(v, KeyAddr, "ADDR", "PORT")
	bindEnv(v, KeyStaticDir, "STATIC_DIR")
	bindEnv(v, KeyAPIKey, "GEMINI_API_KEY")
	bindEnv(v, KeyAPIKeyParam, "GEMINI_API_KEY_PARAM")
	bindEnv(v, KeyModel, "GEMINI_MODEL")
	bindEnv(v, KeyBaseURL, "GEMINI_BASE_URL")
	bindEnv(v, KeyTimeout, "GEMINI_TIMEOUT")
	bindEnv(v, KeyPromptVar, "PROMPT_VARIANT")
	bindEnv(v, KeyPromptFile, "PROMPT_FILE")
	bindEnv(v, KeyMaxBodyBytes, "MAX_BODY_BYTES")
	bindEnv(v, KeyLogLevel, "LOG_LEVEL")
	return v
}

func bindEnv(v *viper.Viper, key string, env ...string) {
	// BindEnv only fails when called without a key.
	_ = v.BindEnv(append([]string{key}, env...)...)
}

// LoadDotEnv reads .env files into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load dotenv: %w", err)
	}
	return nil
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:          normalizeAddr(v.GetString(KeyAddr)),
		StaticDir:     strings.TrimSpace(v.GetString(KeyStaticDir)),
		APIKey:        strings.TrimSpace(v.GetString(KeyAPIKey)),
		APIKeyParam:   strings.TrimSpace(v.GetString(KeyAPIKeyParam)),
		Model:         strings.TrimSpace(v.GetString(KeyModel)),
		BaseURL:       strings.TrimSpace(v.GetString(KeyBaseURL)),
		Timeout:       v.GetDuration(KeyTimeout),
		PromptVariant: strings.TrimSpace(v.GetString(KeyPromptVar)),
		PromptFile:    strings.TrimSpace(v.GetString(KeyPromptFile)),
		MaxBodyBytes:  v.GetInt64(KeyMaxBodyBytes),
		LogLevel:      strings.TrimSpace(v.GetString(KeyLogLevel)),
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("config: %s must not be empty", KeyAddr)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("config: %s must be a positive duration", KeyTimeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("config: %s must be positive", KeyMaxBodyBytes)
	}
	return cfg, nil
}

// normalizeAddr accepts a bare port ("8000") as well as a listen address.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.Contains(addr, ":") {
		return addr
	}
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}

// PromptContext builds the business template: the file when configured,
// otherwise the named variant.
func (c *Config) PromptContext() (usecase.PromptContext, error) {
	if c.PromptFile == "" {
		return usecase.PromptContextForVariant(c.PromptVariant)
	}
	raw, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return usecase.PromptContext{}, fmt.Errorf("config: read prompt file: %w", err)
	}
	return usecase.NewPromptContext(string(raw))
}

// KeyLoader fetches a credential from a named secret store parameter.
type KeyLoader func(ctx context.Context, name string) (string, error)

// ResolveAPIKey fills APIKey from the parameter store when it is not already
// set. A lookup failure leaves the key empty and is returned for logging; it
// is never fatal.
func (c *Config) ResolveAPIKey(ctx context.Context, load KeyLoader) error {
	if c.APIKey != "" || c.APIKeyParam == "" {
		return nil
	}
	if load == nil {
		return errors.New("config: api key parameter set but no loader configured")
	}
	key, err := load(ctx, c.APIKeyParam)
	if err != nil {
		return fmt.Errorf("config: resolve api key from %q: %w", c.APIKeyParam, err)
	}
	c.APIKey = strings.TrimSpace(key)
	return nil
}
