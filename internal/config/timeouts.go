// Package config provides centralized timeout constants for the application.
//
// # LINE API Constraints
//
// LINE webhook has specific timing requirements:
//   - Reply token: should be used as soon as possible
//   - Webhook response: LINE expects quick acknowledgment (200 OK)
//   - Loading animation: Shows for up to 60 seconds
//
// A turn may call the LLM twice (retrieval answer, then quiz generation on the
// next turn), so processing gets the whole loading-animation window.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for incoming requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	// Must exceed APITurn so JSON clients receive composed answers.
	WebhookHTTPWrite = 65 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Engine timeouts
const (
	// APITurn bounds one JSON or websocket turn.
	APITurn = 60 * time.Second

	// LLMRequest bounds a single completion call to one provider.
	LLMRequest = 25 * time.Second

	// CorpusFetch bounds downloading one corpus URL at startup.
	CorpusFetch = 30 * time.Second

	// CorpusRefresh bounds reading and ingesting the whole corpus at startup.
	CorpusRefresh = 5 * time.Minute
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour

	// ReadinessPing bounds the database ping performed by /readyz.
	ReadinessPing = 2 * time.Second
)

// Background job intervals
const (
	// SessionMetricsInterval is how often the active-session gauge is refreshed.
	SessionMetricsInterval = time.Minute

	// HistoryBackupInitialDelay is the delay before the first R2 backup.
	HistoryBackupInitialDelay = 2 * time.Minute

	// RateLimiterSweepInterval is how often idle rate limiter keys are dropped.
	RateLimiterSweepInterval = 5 * time.Minute

	// SessionSweepInterval is how often idle sqlite sessions are deleted.
	SessionSweepInterval = time.Hour
)
