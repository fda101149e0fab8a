// Package genai wraps the LLM providers behind one text-completion
// interface.
//
// Gemini goes through google.golang.org/genai. Groq and Cerebras speak the
// OpenAI chat API and go through github.com/openai/openai-go/v3.
//
// Failures are handled in three layers:
//  1. The same model is retried with full-jitter backoff.
//  2. The next model of the same provider is tried.
//  3. The next provider in the configured order is tried.
//
// Every model sits behind its own circuit breaker so a dead endpoint is
// skipped until its cooldown ends.
package genai

import (
	"context"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
)

// Provider represents an LLM provider.
type Provider string

const (
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderGroq is Groq's OpenAI-compatible API.
	ProviderGroq Provider = "groq"
	// ProviderCerebras is Cerebras's OpenAI-compatible API.
	ProviderCerebras Provider = "cerebras"
)

// ProviderEndpoint is the base URL of each OpenAI-compatible provider.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:     "https://api.groq.com/openai/v1/",
	ProviderCerebras: "https://api.cerebras.ai/v1/",
}

// IsOpenAICompatible reports whether p is served through the OpenAI client.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// Request is one completion call.
type Request struct {
	// System is sent as the system instruction. Optional.
	System string
	// Prompt is the user turn.
	Prompt string

	Temperature float32
	// MaxTokens caps the output. Zero leaves the provider default.
	MaxTokens int
}

// Completer generates text for a prompt.
type Completer interface {
	// Complete returns the generated text. An empty generation is an error.
	Complete(ctx context.Context, req Request) (string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
	// Model returns the model name.
	Model() string
	// Close releases any resources held by the completer.
	Close() error
}

// RetryConfig defines retry behavior for a single model.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// BreakerConfig tunes the per-model circuit breaker.
type BreakerConfig struct {
	// Failures is the number of consecutive failed calls that opens the breaker.
	Failures uint32
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	APIKey string
	// Models is tried in order. Empty means the provider defaults.
	Models []string
}

// LLMConfig holds configuration for all LLM providers.
type LLMConfig struct {
	// Providers is the fallback order. Providers without an API key are skipped.
	Providers []Provider

	Gemini   ProviderConfig
	Groq     ProviderConfig
	Cerebras ProviderConfig

	Retry   RetryConfig
	Breaker BreakerConfig

	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration

	Metrics *metrics.Metrics
}

// Default model chains. The first element is the primary model.
var (
	DefaultGeminiModels   = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels     = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}
	DefaultCerebrasModels = []string{"llama-3.3-70b", "llama-3.1-8b"}

	DefaultProviders = []Provider{ProviderGroq, ProviderGemini, ProviderCerebras}
)

const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second

	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 30 * time.Second
)

// DefaultRetryConfig returns the retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// HasProvider reports whether p is configured with an API key.
func (c *LLMConfig) HasProvider(p Provider) bool {
	pc := c.ProviderConfig(p)
	return pc != nil && pc.APIKey != ""
}

// ProviderConfig returns the configuration of p, or nil for unknown providers.
func (c *LLMConfig) ProviderConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderGemini:
		return &c.Gemini
	case ProviderGroq:
		return &c.Groq
	case ProviderCerebras:
		return &c.Cerebras
	default:
		return nil
	}
}

// ModelsFor returns the configured model chain of p, or its defaults.
func (c *LLMConfig) ModelsFor(p Provider) []string {
	if pc := c.ProviderConfig(p); pc != nil && len(pc.Models) > 0 {
		return pc.Models
	}
	switch p {
	case ProviderGemini:
		return DefaultGeminiModels
	case ProviderGroq:
		return DefaultGroqModels
	case ProviderCerebras:
		return DefaultCerebrasModels
	default:
		return nil
	}
}

// ConfiguredProviders returns the providers with API keys in fallback
// order. Duplicates are dropped.
func (c *LLMConfig) ConfiguredProviders() []Provider {
	order := c.Providers
	if len(order) == 0 {
		order = DefaultProviders
	}
	seen := make(map[Provider]bool, len(order))
	result := make([]Provider, 0, len(order))
	for _, p := range order {
		if seen[p] || !c.HasProvider(p) {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}
