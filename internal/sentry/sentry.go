// Package sentry reports errors to Better Stack through its Sentry-compatible
// ingest. Reporting is off until Initialize is called with a token.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/garyellow/tamly-chatbot-go/internal/ctxutil"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the ingesting host, e.g. "errors.betterstack.com".
	Host string

	Environment string
	Release     string

	// SampleRate is 0..1; 0 means report everything.
	SampleRate float64

	Debug bool
}

// Initialize sets up the SDK. It reports false, with no error, when Token is
// empty. The DSN has the form https://TOKEN@HOST/1; the project id is
// required by the SDK and ignored by Better Stack.
func Initialize(cfg Config) (bool, error) {
	if cfg.Token == "" {
		return false, nil
	}
	if cfg.Host == "" {
		return false, errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return false, fmt.Errorf("sentry init: %w", err)
	}
	return true, nil
}

// scrubEvent removes what users typed. Chat text is health information
// and never leaves the service.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil {
		return nil
	}
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
		event.Request.QueryString = ""
	}
	for i := range event.Breadcrumbs {
		if event.Breadcrumbs[i] != nil {
			event.Breadcrumbs[i].Data = nil
		}
	}
	return event
}

// IsEnabled reports whether a client is configured.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Middleware attaches a hub to each request and reports panics before
// re-panicking into gin's recovery.
func Middleware() gin.HandlerFunc {
	if !IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// hubFor returns the request's hub, or a clone of the global one.
func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

// tagScope copies the tracing ids from ctx onto scope.
func tagScope(ctx context.Context, scope *sentry.Scope) {
	if id := ctxutil.GetSessionID(ctx); id != "" {
		scope.SetTag("session_id", id)
	}
	if id := ctxutil.GetChatID(ctx); id != "" {
		scope.SetTag("chat_id", id)
	}
	if id, ok := ctxutil.GetRequestID(ctx); ok && id != "" {
		scope.SetTag("request_id", id)
	}
}

// CaptureError reports err tagged with the ids in ctx. Cancellations are
// not errors worth reporting and are skipped.
func CaptureError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) || !IsEnabled() {
		return
	}
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		tagScope(ctx, scope)
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(ctx context.Context, recovered any) {
	if recovered == nil || !IsEnabled() {
		return
	}
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		tagScope(ctx, scope)
		hub.Recover(recovered)
	})
}

// Flush waits up to timeout for queued events.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
