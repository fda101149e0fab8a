package rag

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
)

// DefaultTopK is the number of passages handed to the LLM.
const DefaultTopK = 3

// DocumentSearcher finds chunks containing a term literally.
// *storage.DB implements it.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, term string, limit int) ([]storage.Document, error)
}

// Retriever runs BM25 and literal search side by side and fuses them.
type Retriever struct {
	index   *Index
	literal DocumentSearcher
	topK    int
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewRetriever creates a retriever. literal may be nil to use BM25 alone.
func NewRetriever(index *Index, literal DocumentSearcher, topK int, m *metrics.Metrics, log *logger.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.New("info")
	}
	return &Retriever{index: index, literal: literal, topK: topK, metrics: m, log: log}
}

// TopK returns the default number of passages per search.
func (r *Retriever) TopK() int {
	return r.topK
}

// Search returns up to k passages for query. k <= 0 uses the retriever's
// default. A failing literal search degrades to BM25 alone.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = r.topK
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	// Fetch deeper than k so fusion has overlap to work with.
	fetchN := max(k*3, 10)

	var (
		bm25Hits []Hit
		literal  []storage.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bm25Hits, err = r.index.Search(query, fetchN)
		return err
	})
	if r.literal != nil {
		g.Go(func() error {
			docs, err := r.literal.SearchDocuments(gctx, query, fetchN)
			if err != nil {
				if gctx.Err() == nil {
					r.log.WithError(err).Warn("Literal corpus search failed")
				}
				return nil
			}
			literal = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.metrics.RecordRetrieval("error")
		return nil, err
	}

	hits := FuseRRF(bm25Hits, literal, DefaultBM25Weight, k)
	if len(hits) == 0 {
		r.metrics.RecordRetrieval("miss")
	} else {
		r.metrics.RecordRetrieval("hit")
	}
	r.log.WithFields(map[string]any{
		"bm25":    len(bm25Hits),
		"literal": len(literal),
		"fused":   len(hits),
	}).DebugContext(ctx, "Corpus search finished")
	return hits, nil
}
