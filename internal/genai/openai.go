package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiCompleter calls one model on an OpenAI-compatible provider
// (Groq, Cerebras).
type openaiCompleter struct {
	client   openai.Client
	model    string
	provider Provider
}

var _ Completer = (*openaiCompleter)(nil)

func newOpenAICompleter(provider Provider, apiKey, model string) (*openaiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrNoProvider)
	}

	baseURL, ok := ProviderEndpoint[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
	}

	if model == "" {
		switch provider {
		case ProviderGroq:
			model = DefaultGroqModels[0]
		case ProviderCerebras:
			model = DefaultCerebrasModels[0]
		default:
			return nil, fmt.Errorf("no default model for provider: %s", provider)
		}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		// Retries are driven by WithRetry.
		option.WithMaxRetries(0),
	)

	return &openaiCompleter{client: client, model: model, provider: provider}, nil
}

// Complete implements Completer.
func (o *openaiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		return "", o.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	if resp.Usage.TotalTokens > 0 {
		slog.DebugContext(ctx, "completion finished",
			"provider", o.provider,
			"model", o.model,
			"input_tokens", resp.Usage.PromptTokens,
			"output_tokens", resp.Usage.CompletionTokens,
			"duration_ms", duration.Milliseconds())
	}

	return text, nil
}

func (o *openaiCompleter) wrapError(err error) error {
	wrapped := fmt.Errorf("chat completion failed: %w", err)

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return WrapError(wrapped, o.provider, 0)
	}
	llmErr := &LLMError{Err: wrapped, StatusCode: apiErr.StatusCode, Provider: o.provider}
	if apiErr.Response != nil {
		llmErr.RetryAfter = ParseRetryAfter(apiErr.Response.Header)
	}
	return llmErr
}

func (o *openaiCompleter) Provider() Provider { return o.provider }
func (o *openaiCompleter) Model() string      { return o.model }

// Close implements Completer. The HTTP client is shared and needs no cleanup.
func (o *openaiCompleter) Close() error { return nil }
