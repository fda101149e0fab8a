package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.ClassificationsTotal == nil || m.LLMRequestsTotal == nil || m.WebhookRequestsTotal == nil {
		t.Error("metric vectors should be initialized")
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	t.Parallel()
	// promauto panics on duplicate registration within one registry.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

func TestRecorders(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.RecordClassification("direct_query")
	m.RecordClassification("direct_query")
	m.RecordClassification("unclear")
	if got := testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("direct_query")); got != 2 {
		t.Errorf("direct_query count = %v, want 2", got)
	}

	m.RecordComposerFallback("answer", "too_short")
	if got := testutil.ToFloat64(m.ComposerFallbacks.WithLabelValues("answer", "too_short")); got != 1 {
		t.Errorf("fallback count = %v, want 1", got)
	}

	m.RecordLLM("groq", "complete", "success", 0.8)
	m.RecordLLM("groq", "complete", "rate_limit", 0)
	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("groq", "complete", "rate_limit")); got != 1 {
		t.Errorf("rate_limit count = %v, want 1", got)
	}

	m.SetActiveSessions(7)
	if got := testutil.ToFloat64(m.ActiveSessions); got != 7 {
		t.Errorf("active sessions = %v, want 7", got)
	}

	m.SetRateLimiterKeys("user", 3)
	m.RecordRateLimiterDrop("llm")
	m.RecordWebhook("message", "success", 0.2)
	m.RecordHTTPRequest("/api/sessions/:id/input", "2xx", 0.1)
	m.RecordHistoryBackup("uploaded")
	m.RecordQuizTransition("issued")
	m.RecordEmotion("sad")
	m.RecordRetrieval("hit")
	m.SetIndexDocuments(120)
	m.RecordLLMFallback("groq", "gemini", "complete")
	m.SetBreakerState("groq", 2)

	expected := `
# HELP tamly_history_backups_total Chat history backups to object storage by status
# TYPE tamly_history_backups_total counter
tamly_history_backups_total{status="uploaded"} 1
`
	if err := testutil.CollectAndCompare(m.HistoryBackupsTotal, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.RecordClassification("x")
	m.RecordComposerFallback("x", "y")
	m.RecordLLM("p", "o", "s", 1)
	m.SetActiveSessions(1)
	m.RecordWebhook("message", "success", 1)
	m.RecordRateLimiterDrop("user")
	m.RecordHistoryBackup("error")
}
