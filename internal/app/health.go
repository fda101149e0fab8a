package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/tamly-chatbot-go/internal/buildinfo"
	"github.com/garyellow/tamly-chatbot-go/internal/config"
)

func (a *Application) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "tamly-chatbot-go",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheck reports 503 while the database or the shared session
// store is unreachable, or the corpus index is empty.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessPing)
	defer cancel()

	notReady := func(reason string) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": reason})
	}

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		notReady("database unavailable")
		return
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Readiness check failed: redis unavailable")
			notReady("session store unavailable")
			return
		}
	}
	docs := 0
	if a.index != nil {
		docs = a.index.Count()
	}
	if docs == 0 {
		notReady("corpus index empty")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"sessions": a.cfg.SessionBackend,
		"index":    gin.H{"documents": docs},
		"features": a.features(),
	})
}

func (a *Application) features() map[string]bool {
	return map[string]bool{
		"line_webhook":   a.webhookHandler != nil,
		"history_backup": a.backup != nil,
		"llm_fallback":   a.completer != nil && a.completer.Len() > 1,
	}
}
