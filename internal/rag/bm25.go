// Package rag retrieves DSM-5 reference passages and feeds them to the LLM.
// Documents are chunked, persisted in sqlite and indexed with BM25; a
// literal LIKE search over the same table is fused in with reciprocal
// rank fusion.
package rag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/iwilltry42/bm25-go/bm25"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Standard BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Hit is a ranked passage.
type Hit struct {
	Doc   storage.Document
	Score float64
	// Rank is 1-indexed.
	Rank int
}

// Index is a BM25 index over corpus chunks. It is rebuilt as a whole;
// BM25 needs the full corpus for its IDF terms.
type Index struct {
	mu    sync.RWMutex
	okapi *bm25.BM25Okapi
	docs  []storage.Document
	log   *logger.Logger
}

// NewIndex creates an empty index.
func NewIndex(log *logger.Logger) *Index {
	return &Index{log: log}
}

// Build replaces the indexed corpus with docs.
func (idx *Index) Build(docs []storage.Document) error {
	kept := make([]storage.Document, 0, len(docs))
	corpus := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		kept = append(kept, d)
		corpus = append(corpus, d.Content)
	}

	var okapi *bm25.BM25Okapi
	if len(corpus) > 0 {
		var err error
		okapi, err = bm25.NewBM25Okapi(corpus, Tokenize, bm25K1, bm25B, nil)
		if err != nil {
			return fmt.Errorf("failed to create BM25 index: %w", err)
		}
	}

	idx.mu.Lock()
	idx.okapi = okapi
	idx.docs = kept
	idx.mu.Unlock()

	idx.log.WithField("docs", len(kept)).Info("BM25 index built")
	return nil
}

// Search returns up to k passages with a positive score, best first.
func (idx *Index) Search(query string, k int) ([]Hit, error) {
	if idx == nil || k <= 0 {
		return nil, nil
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.okapi == nil {
		return nil, nil
	}

	scores, err := idx.okapi.GetScores(tokens)
	if err != nil {
		return nil, fmt.Errorf("BM25 scoring failed: %w", err)
	}

	hits := make([]Hit, 0, k)
	for i, score := range scores {
		if score > 0 && i < len(idx.docs) {
			hits = append(hits, Hit{Doc: idx.docs[i], Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// IsEnabled reports whether the index holds any documents.
func (idx *Index) IsEnabled() bool {
	return idx.Count() > 0
}

// Count returns the number of indexed chunks.
func (idx *Index) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Tokenize folds text and splits it into syllables plus adjacent syllable
// pairs. Most Vietnamese words span two syllables ("trầm cảm", "lo âu"),
// so the pairs reward passages that keep them together.
func Tokenize(text string) []string {
	syllables := strings.FieldsFunc(textnorm.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
	if len(syllables) == 0 {
		return nil
	}
	tokens := make([]string, 0, 2*len(syllables)-1)
	tokens = append(tokens, syllables...)
	for i := 0; i+1 < len(syllables); i++ {
		tokens = append(tokens, syllables[i]+" "+syllables[i+1])
	}
	return tokens
}
