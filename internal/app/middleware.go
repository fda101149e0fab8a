package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/tamly-chatbot-go/internal/ctxutil"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
)

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'")
		// Transcripts are health data.
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// loggingMiddleware logs every request once it completes: 5xx at error,
// other 4xx at warn, the rest at debug. Request bodies are never logged.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestID string
		for _, h := range requestIDHeaders {
			if requestID = c.GetHeader(h); requestID != "" {
				break
			}
		}
		if requestID != "" {
			c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(map[string]any{
			"http_method": c.Request.Method,
			"http_path":   c.Request.URL.Path,
			"http_status": status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != 404:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
