package rag

import (
	"sort"

	"github.com/garyellow/tamly-chatbot-go/internal/storage"
)

const (
	// RRFConstant is k in 1 / (k + rank). 60 is the usual choice: top ranks
	// dominate without erasing lower ones.
	RRFConstant = 60

	// DefaultBM25Weight gives BM25 70% and the literal search 30%.
	DefaultBM25Weight = 0.7
)

// FuseRRF merges BM25 hits and literal matches with reciprocal rank fusion:
//
//	score(d) = Σ w_i / (k + rank_i)
//
// Documents are keyed by ID. The returned hits carry the fused score and
// a fresh 1-indexed rank.
func FuseRRF(bm25Hits []Hit, literal []storage.Document, bm25Weight float64, topN int) []Hit {
	bm25Weight = min(max(bm25Weight, 0), 1)
	literalWeight := 1 - bm25Weight

	fused := make(map[int64]*Hit, len(bm25Hits)+len(literal))
	order := make([]int64, 0, len(bm25Hits)+len(literal))
	add := func(doc storage.Document, score float64) {
		if h, ok := fused[doc.ID]; ok {
			h.Score += score
			return
		}
		fused[doc.ID] = &Hit{Doc: doc, Score: score}
		order = append(order, doc.ID)
	}

	for i, h := range bm25Hits {
		add(h.Doc, bm25Weight/float64(RRFConstant+i+1))
	}
	for i, d := range literal {
		add(d, literalWeight/float64(RRFConstant+i+1))
	}

	results := make([]Hit, 0, len(order))
	for _, id := range order {
		results = append(results, *fused[id])
	}
	// Stable on first-seen order so ties keep BM25's preference.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
