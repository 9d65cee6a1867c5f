package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"willows-assistant/internal/logging"
)

const defaultMaxBodyBytes = 1 << 20

type RouterConfig struct {
	// StaticDir is the root served for GET and HEAD requests. Empty means ".".
	StaticDir string
	// MaxBodyBytes caps the chat request body. Zero or negative means 1 MiB.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter builds the local HTTP gateway: CORS on every response, the chat
// endpoint, a health probe, and static files for everything else.
func NewRouter(uc ReplyUseCase, cfg RouterConfig) (*gin.Engine, error) {
	if uc == nil {
		return nil, errors.New("handler: reply use case must not be nil")
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "."
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(
		correlationMiddleware(),
		requestLogger(cfg.Logger),
		corsMiddleware(),
		gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
			cfg.Logger.ErrorContext(c.Request.Context(), "panic while serving request", "panic", rec)
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
	)

	r.POST(ChatPath, chatHandler(uc, cfg.MaxBodyBytes))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(staticFiles(cfg.StaticDir))

	return r, nil
}

func chatHandler(uc ReplyUseCase, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, readErr := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
		status, payload := serveChat(c.Request.Context(), uc, body, readErr)
		c.JSON(status, payload)
	}
}

// corsMiddleware answers every preflight itself, on any path.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(headerAllowOrigin, allowOrigin)
		if c.Request.Method == http.MethodOptions {
			c.Header(headerAllowMethods, allowMethods)
			c.Header(headerAllowHeaders, allowHeaders)
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := correlationID(c.GetHeader(headerCorrelationID))
		c.Header(headerCorrelationID, id)
		c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// staticFiles serves files under root for GET and HEAD. Anything else, any
// dotfile or dot-directory (.env, .git), and any path that does not exist is
// a 404 with an empty body.
func staticFiles(root string) gin.HandlerFunc {
	fsys := http.Dir(root)
	fileServer := http.FileServer(fsys)
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		name := path.Clean("/" + c.Request.URL.Path)
		if hiddenPath(name) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		f, err := fsys.Open(name)
		if err != nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		_ = f.Close()
		// NoRoute handlers start out as 404; directory listings never set a status.
		c.Status(http.StatusOK)
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}

func hiddenPath(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
