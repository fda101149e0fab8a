package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyellow/tamly-chatbot-go/internal/composer"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/genai"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
)

// QAOptions tunes the completion request.
type QAOptions struct {
	Temperature float32
	MaxTokens   int
	Logger      *logger.Logger
}

// QAChain answers a query from retrieved passages. It is the composer's
// collaborator.
type QAChain struct {
	retriever *Retriever
	completer genai.Completer
	opts      QAOptions
	log       *logger.Logger
}

var _ composer.Collaborator = (*QAChain)(nil)

// NewQAChain wires a retriever to a completer. Both are required.
func NewQAChain(retriever *Retriever, completer genai.Completer, opts QAOptions) (*QAChain, error) {
	wrap := apperrors.NewWrapper("rag", "new_qa_chain")
	if retriever == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Chưa có chỉ mục tài liệu")
	}
	if completer == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Chưa cấu hình mô hình ngôn ngữ")
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("info")
	}
	return &QAChain{retriever: retriever, completer: completer, opts: opts, log: log.WithModule("rag")}, nil
}

// RetrieveAndGenerate implements composer.Collaborator. A retrieval
// failure is logged and the question is answered without context; only
// completion failures are returned.
func (q *QAChain) RetrieveAndGenerate(ctx context.Context, query string) (string, error) {
	hits, err := q.retriever.Search(ctx, query, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		q.log.WithError(err).WarnContext(ctx, "Retrieval failed, answering without context")
	}

	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Doc.Content
	}

	text, err := q.completer.Complete(ctx, genai.Request{
		System:      genai.SystemPrompt,
		Prompt:      genai.QAPrompt(passages, query),
		Temperature: q.opts.Temperature,
		MaxTokens:   q.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	return text, nil
}
