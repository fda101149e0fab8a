package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ErrNoProvider is returned when no provider has an API key.
var ErrNoProvider = errors.New("no LLM provider configured")

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry retries the same model after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves on to the next model in the chain.
	ActionFallback
	// ActionFail stops retrying the current model.
	ActionFail
)

// String returns a human-readable string for the error action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError carries the HTTP status of a failed provider call.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	// RetryAfter is the server-requested wait, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// ClassifyError maps err to a retry decision:
//   - transient errors (429, 5xx, network) are retried
//   - quota exhaustion, open breakers and empty output fall back
//   - permanent errors (400, 401, 403, 404) fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ActionFallback
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	errStr := strings.ToLower(err.Error())

	// Quota before rate limit: both mention limits, only quota is persistent.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing") {
		return ActionFallback
	}
	if containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429") {
		return ActionRetry
	}
	if containsAny(errStr, "unavailable", "503", "502", "500", "504",
		"internal server error", "bad gateway", "gateway timeout", "overloaded", "capacity") {
		return ActionRetry
	}
	if containsAny(errStr, "408", "409", "timeout", "deadline", "connection") {
		return ActionRetry
	}

	if containsAny(errStr, "400", "invalid", "bad request", "malformed") {
		return ActionFail
	}
	if containsAny(errStr, "401", "unauthorized", "unauthenticated") {
		return ActionFail
	}
	if containsAny(errStr, "403", "forbidden", "permission denied") {
		return ActionFail
	}
	if containsAny(errStr, "404", "not found") {
		return ActionFail
	}
	if containsAny(errStr, "422", "unprocessable") {
		return ActionFail
	}

	return ActionRetry
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// ParseRetryAfter reads the wait a provider asked for. It understands
// retry-after-ms, retry-after in seconds or HTTP-date form, and Groq's
// x-ratelimit-reset-tokens. It returns 0 when none is usable.
func ParseRetryAfter(headers http.Header) time.Duration {
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}

	if resetStr := headers.Get("x-ratelimit-reset-tokens"); resetStr != "" {
		if d, err := time.ParseDuration(resetStr); err == nil && d > 0 {
			return d
		}
	}

	return 0
}

// IsRetryable returns true if the error is transient and can be retried.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

// IsPermanent returns true if the error should not be retried on the same model.
func IsPermanent(err error) bool {
	return ClassifyError(err) == ActionFail
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// classifyErrorType returns the metrics status label for err.
func classifyErrorType(err error) string {
	if err == nil {
		return "success"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		switch code := llmErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return "rate_limit"
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return "auth_error"
		case code >= 500:
			return "server_error"
		case code >= 400:
			return "invalid_request"
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "quota", "billing"):
		return "quota_exhausted"
	case containsAny(errStr, "rate limit", "429", "resource_exhausted"):
		return "rate_limit"
	case containsAny(errStr, "401", "403", "unauthorized", "api key"):
		return "auth_error"
	case containsAny(errStr, "500", "502", "503", "504", "unavailable"):
		return "server_error"
	case containsAny(errStr, "400", "invalid"):
		return "invalid_request"
	default:
		return "transient_error"
	}
}

// WrapError attaches provider and status information to err.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	return &LLMError{Err: err, StatusCode: statusCode, Provider: provider}
}
