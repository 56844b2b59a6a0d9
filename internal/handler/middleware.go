package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hpn/hpn-co2-enricher/internal/security"
	"github.com/hpn/hpn-co2-enricher/internal/ui"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"

	// HeaderGeminiAPIKey lets a caller supply its own Gemini key.
	HeaderGeminiAPIKey = "X-Gemini-Api-Key"

	ctxRequestID = "request_id"
	ctxKeyUsed   = "key_used"
	ctxModel     = "model"
	ctxCacheHit  = "cache_hit"
)

// CORSMiddleware enables CORS for the given origins. "*" or an empty list allows any origin.
// The browser extension calls the API directly, so this is on by default.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Cache-Control, X-Requested-With, "+HeaderRequestID+", "+HeaderGeminiAPIKey)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
		c.Header("Access-Control-Expose-Headers", HeaderRequestID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware reuses an incoming X-Request-ID or assigns a new UUID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// LoggingMiddleware logs every request in structured form and, when console is
// non-nil, prints a styled line as well.
func LoggingMiddleware(logger *slog.Logger, console *ui.Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString(ctxRequestID)

		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", latency),
			slog.String("client_ip", c.ClientIP()),
		}
		if key := c.GetString(ctxKeyUsed); key != "" {
			attrs = append(attrs, slog.String("key_used", security.MaskKey(key)))
		}
		if model := c.GetString(ctxModel); model != "" {
			attrs = append(attrs, slog.String("model", model))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request completed", attrs...)

		if console != nil {
			console.PrintRequest(c.Request.Method, path, c.Writer.Status(), latency, requestID)
		}
	}
}

// RecoveryMiddleware recovers from panics and answers 500.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("path", c.Request.URL.Path),
					slog.String("request_id", c.GetString(ctxRequestID)),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("server_error", "Internal server error"))
			}
		}()

		c.Next()
	}
}
