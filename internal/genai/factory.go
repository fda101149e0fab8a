package genai

import (
	"context"
	"log/slog"
)

// NewCompleter builds the fallback chain from cfg. Providers are taken in
// cfg.Providers order, and within a provider its models in order. A model
// whose client cannot be created is skipped. It returns ErrNoProvider when
// nothing could be built.
func NewCompleter(ctx context.Context, cfg LLMConfig) (*FallbackCompleter, error) {
	var chain []Completer

	for _, p := range cfg.ConfiguredProviders() {
		apiKey := cfg.ProviderConfig(p).APIKey
		for _, model := range cfg.ModelsFor(p) {
			var (
				c   Completer
				err error
			)
			if p == ProviderGemini {
				c, err = newGeminiCompleter(ctx, apiKey, model)
			} else {
				c, err = newOpenAICompleter(p, apiKey, model)
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to create completer", "provider", p, "model", model, "error", err)
				continue
			}
			chain = append(chain, c)
		}
	}

	if len(chain) == 0 {
		return nil, ErrNoProvider
	}

	slog.InfoContext(ctx, "completer configured",
		"primary", chain[0].Provider(),
		"model", chain[0].Model(),
		"chain_size", len(chain))

	return NewFallbackCompleter(FallbackOptions{
		Retry:   cfg.Retry,
		Breaker: cfg.Breaker,
		Timeout: cfg.Timeout,
		Metrics: cfg.Metrics,
	}, chain...), nil
}
