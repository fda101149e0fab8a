package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiCompleter calls one Gemini model.
type geminiCompleter struct {
	client *genai.Client
	model  string
}

var _ Completer = (*geminiCompleter)(nil)

func newGeminiCompleter(ctx context.Context, apiKey, model string) (*geminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoProvider)
	}
	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiCompleter{client: client, model: model}, nil
}

// Complete implements Completer.
func (g *geminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded by config validation
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	duration := time.Since(start)
	if err != nil {
		return "", WrapError(fmt.Errorf("generate content failed: %w", err), ProviderGemini, 0)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyCompletion
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "completion finished",
			"provider", ProviderGemini,
			"model", g.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds())
	}

	return text, nil
}

func (g *geminiCompleter) Provider() Provider { return ProviderGemini }
func (g *geminiCompleter) Model() string      { return g.model }

// Close implements Completer. The genai client holds no resources.
func (g *geminiCompleter) Close() error { return nil }
