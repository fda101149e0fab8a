package sentry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

func TestInitialize_EmptyToken(t *testing.T) {
	t.Parallel()
	enabled, err := Initialize(Config{})
	if err != nil || enabled {
		t.Errorf("Initialize(empty) = %v, %v; want disabled without error", enabled, err)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()
	if _, err := Initialize(Config{Token: "test-token"}); err == nil {
		t.Error("expected error when host is missing")
	}
}

func TestScrubEvent(t *testing.T) {
	t.Parallel()
	event := &sentry.Event{
		Request: &sentry.Request{
			URL:         "https://example.com/api/sessions/abc/input",
			Data:        `{"text":"tôi thấy buồn"}`,
			QueryString: "q=buồn",
		},
		Breadcrumbs: []*sentry.Breadcrumb{{Message: "turn", Data: map[string]any{"text": "tôi thấy buồn"}}},
	}
	got := scrubEvent(event, nil)
	if got.Request.Data != "" || got.Request.QueryString != "" {
		t.Errorf("request body survived scrubbing: %+v", got.Request)
	}
	if got.Request.URL == "" {
		t.Error("URL should be kept")
	}
	if got.Breadcrumbs[0].Data != nil {
		t.Error("breadcrumb data survived scrubbing")
	}
	if scrubEvent(nil, nil) != nil {
		t.Error("nil event should stay nil")
	}
}

func TestCapture_DisabledIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	CaptureError(ctx, errors.New("boom"))
	CaptureError(ctx, nil)
	CapturePanic(ctx, "panic value")
	if !Flush(100 * time.Millisecond) {
		t.Error("Flush should succeed with nothing queued")
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/livez", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
