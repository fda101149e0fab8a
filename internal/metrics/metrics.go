// Package metrics defines the Prometheus metrics exported on /metrics.
//
// Record* methods are nil-safe so components can be built without metrics
// in tests and tools.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Conversation engine metrics
	ClassificationsTotal *prometheus.CounterVec
	EmotionsTotal        *prometheus.CounterVec
	QuizTransitionsTotal *prometheus.CounterVec
	ComposerFallbacks    *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge

	// Retrieval metrics
	RetrievalSearchesTotal *prometheus.CounterVec
	IndexDocuments         prometheus.Gauge

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMFallbackTotal   *prometheus.CounterVec
	LLMBreakerState    *prometheus.GaugeVec

	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimiterDropped    *prometheus.CounterVec
	RateLimiterActiveKeys *prometheus.GaugeVec

	// History backup metrics
	HistoryBackupsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_classifications_total",
				Help: "Total number of classified utterances by intent category",
			},
			[]string{"category"}, // category: direct_query, emotional_disclosure, unclear, empty
		),

		EmotionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_emotions_detected_total",
				Help: "Total number of detected emotions by tag",
			},
			[]string{"emotion"},
		),

		QuizTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_quiz_transitions_total",
				Help: "Quiz state machine transitions",
			},
			[]string{"transition"}, // transition: issued, answered, generation_failed, replaced
		),

		ComposerFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_composer_fallbacks_total",
				Help: "Responses composed from fallback templates instead of generated text",
			},
			[]string{"branch", "reason"}, // reason: collaborator_error, malformed, too_short, no_info
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tamly_active_sessions",
				Help: "Number of stored conversation sessions",
			},
		),

		RetrievalSearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_retrieval_searches_total",
				Help: "Total number of corpus searches by outcome",
			},
			[]string{"status"}, // status: hit, empty
		),

		IndexDocuments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tamly_index_documents",
				Help: "Number of corpus chunks in the retrieval index",
			},
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_llm_requests_total",
				Help: "Total LLM completion requests by provider, operation and status",
			},
			[]string{"provider", "operation", "status"},
		),

		LLMDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tamly_llm_duration_seconds",
				Help:    "LLM completion latency by provider and operation",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 25},
			},
			[]string{"provider", "operation"},
		),

		LLMFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_llm_fallback_total",
				Help: "Provider fallbacks by source and target provider",
			},
			[]string{"from", "to", "operation"},
		),

		LLMBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tamly_llm_circuit_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tamly_webhook_duration_seconds",
				Help:    "Webhook processing duration in seconds by event type",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"event_type"}, // event_type: message, postback, follow
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_webhook_requests_total",
				Help: "Total number of webhook events by type and status",
			},
			[]string{"event_type", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tamly_http_request_duration_seconds",
				Help:    "JSON API request duration by route and status class",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter"}, // limiter: user, llm
		),

		RateLimiterActiveKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tamly_rate_limiter_active_keys",
				Help: "Number of tracked keys per rate limiter",
			},
			[]string{"limiter"},
		),

		HistoryBackupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamly_history_backups_total",
				Help: "Chat history backups to object storage by status",
			},
			[]string{"status"}, // status: uploaded, unchanged, error
		),
	}
}

// RecordClassification records the routing decision for one utterance.
func (m *Metrics) RecordClassification(category string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(category).Inc()
}

// RecordEmotion records a detected emotion.
func (m *Metrics) RecordEmotion(emotion string) {
	if m == nil {
		return
	}
	m.EmotionsTotal.WithLabelValues(emotion).Inc()
}

// RecordQuizTransition records a quiz state change.
func (m *Metrics) RecordQuizTransition(transition string) {
	if m == nil {
		return
	}
	m.QuizTransitionsTotal.WithLabelValues(transition).Inc()
}

// RecordComposerFallback records a templated response.
func (m *Metrics) RecordComposerFallback(branch, reason string) {
	if m == nil {
		return
	}
	m.ComposerFallbacks.WithLabelValues(branch, reason).Inc()
}

// SetActiveSessions sets the stored-session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordRetrieval records a corpus search outcome.
func (m *Metrics) RecordRetrieval(status string) {
	if m == nil {
		return
	}
	m.RetrievalSearchesTotal.WithLabelValues(status).Inc()
}

// SetIndexDocuments sets the retrieval index size.
func (m *Metrics) SetIndexDocuments(n int) {
	if m == nil {
		return
	}
	m.IndexDocuments.Set(float64(n))
}

// RecordLLM records one provider call.
func (m *Metrics) RecordLLM(provider, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	if status == "success" {
		m.LLMDurationSeconds.WithLabelValues(provider, operation).Observe(duration)
	}
}

// RecordLLMFallback records switching from one provider to the next.
func (m *Metrics) RecordLLMFallback(from, to, operation string) {
	if m == nil {
		return
	}
	m.LLMFallbackTotal.WithLabelValues(from, to, operation).Inc()
}

// SetBreakerState records the circuit breaker state of provider.
func (m *Metrics) SetBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.LLMBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPRequest records one JSON API request.
func (m *Metrics) RecordHTTPRequest(route, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, status).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterKeys sets the number of tracked keys for limiter.
func (m *Metrics) SetRateLimiterKeys(limiter string, n int) {
	if m == nil {
		return
	}
	m.RateLimiterActiveKeys.WithLabelValues(limiter).Set(float64(n))
}

// RecordHistoryBackup records a backup attempt.
func (m *Metrics) RecordHistoryBackup(status string) {
	if m == nil {
		return
	}
	m.HistoryBackupsTotal.WithLabelValues(status).Inc()
}
