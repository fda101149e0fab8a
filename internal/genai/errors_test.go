package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected ErrorAction
	}{
		{"nil error", nil, ActionFail},
		{"context canceled", context.Canceled, ActionFail},
		{"context deadline exceeded", context.DeadlineExceeded, ActionRetry},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},

		{"breaker open", gobreaker.ErrOpenState, ActionFallback},
		{"breaker half-open saturated", gobreaker.ErrTooManyRequests, ActionFallback},
		{"empty completion", fmt.Errorf("groq: %w", ErrEmptyCompletion), ActionFallback},

		{"LLMError 429", &LLMError{Err: errors.New("limited"), StatusCode: http.StatusTooManyRequests}, ActionRetry},
		{"LLMError 503", &LLMError{Err: errors.New("down"), StatusCode: http.StatusServiceUnavailable}, ActionRetry},
		{"LLMError 409", &LLMError{Err: errors.New("conflict"), StatusCode: http.StatusConflict}, ActionRetry},
		{"LLMError 400", &LLMError{Err: errors.New("bad"), StatusCode: http.StatusBadRequest}, ActionFail},
		{"LLMError 401", &LLMError{Err: errors.New("key"), StatusCode: http.StatusUnauthorized}, ActionFail},
		{"LLMError without status uses message", &LLMError{Err: errors.New("daily quota exceeded")}, ActionFallback},

		{"quota exceeded", errors.New("Quota exceeded for model"), ActionFallback},
		{"billing", errors.New("billing account disabled"), ActionFallback},
		{"rate limit", errors.New("rate limit reached"), ActionRetry},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), ActionRetry},
		{"service unavailable", errors.New("Error 503, Service Unavailable"), ActionRetry},
		{"overloaded", errors.New("model is overloaded"), ActionRetry},
		{"connection reset", errors.New("read: connection reset by peer"), ActionRetry},
		{"bad request", errors.New("Error 400, bad request"), ActionFail},
		{"forbidden", errors.New("permission denied on resource"), ActionFail},
		{"model not found", errors.New("model not found"), ActionFail},
		{"unknown", errors.New("something odd"), ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassifyErrorType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{gobreaker.ErrOpenState, "breaker_open"},
		{ErrEmptyCompletion, "empty"},
		{&LLMError{Err: errors.New("x"), StatusCode: 429}, "rate_limit"},
		{&LLMError{Err: errors.New("x"), StatusCode: 403}, "auth_error"},
		{&LLMError{Err: errors.New("x"), StatusCode: 502}, "server_error"},
		{&LLMError{Err: errors.New("x"), StatusCode: 422}, "invalid_request"},
		{errors.New("quota exceeded"), "quota_exhausted"},
		{errors.New("boom"), "transient_error"},
	}
	for _, tt := range tests {
		if got := classifyErrorType(tt.err); got != tt.want {
			t.Errorf("classifyErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{"none", nil, 0},
		{"milliseconds", map[string]string{"retry-after-ms": "1500"}, 1500 * time.Millisecond},
		{"seconds", map[string]string{"retry-after": "2"}, 2 * time.Second},
		{"ms wins over seconds", map[string]string{"retry-after-ms": "100", "retry-after": "9"}, 100 * time.Millisecond},
		{"groq reset", map[string]string{"x-ratelimit-reset-tokens": "7.5s"}, 7500 * time.Millisecond},
		{"garbage", map[string]string{"retry-after": "soon"}, 0},
		{"negative", map[string]string{"retry-after": "-3"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := ParseRetryAfter(h); got != tt.want {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLLMError(t *testing.T) {
	t.Parallel()
	base := errors.New("upstream failed")

	err := WrapError(base, ProviderGroq, 502)
	if err.Error() != "upstream failed (status: 502)" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("LLMError should unwrap to the cause")
	}
	if WrapError(nil, ProviderGroq, 500) != nil {
		t.Error("WrapError(nil) should be nil")
	}
	if got := WrapError(base, ProviderGemini, 0).Error(); got != "upstream failed" {
		t.Errorf("Error() without status = %q", got)
	}
}

func TestErrorActionString(t *testing.T) {
	t.Parallel()
	for action, want := range map[ErrorAction]string{
		ActionRetry:     "retry",
		ActionFallback:  "fallback",
		ActionFail:      "fail",
		ErrorAction(99): "unknown",
	} {
		if got := action.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", action, got, want)
		}
	}
}

func TestHelperFunctions(t *testing.T) {
	t.Parallel()
	if !IsRetryable(errors.New("503")) {
		t.Error("503 should be retryable")
	}
	if !IsPermanent(errors.New("401 unauthorized")) {
		t.Error("401 should be permanent")
	}
	if IsPermanent(gobreaker.ErrOpenState) {
		t.Error("an open breaker should fall back, not fail")
	}
}
