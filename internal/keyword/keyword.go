// Package keyword loads the three keyword lists that drive intent routing and
// classifies utterances against them.
//
// Matching is literal substring containment on case-folded text: "lo âu" in
// a list matches "tôi hay lo âu về thi cử". Whole-word matching is not used.
package keyword

import (
	"strings"

	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Kind names one of the three keyword lists.
type Kind string

// Keyword list kinds.
const (
	KindDirectQuery Kind = "direct_query"
	KindEmotion     Kind = "emotion"
	KindPersonal    Kind = "personal"
)

// Kinds lists every keyword kind in load order.
var Kinds = []Kind{KindDirectQuery, KindEmotion, KindPersonal}

// FileName returns the CSV file name conventionally used for k.
func (k Kind) FileName() string {
	return string(k) + "_keywords.csv"
}

// Set is an immutable list of folded, non-empty keywords.
// Order is preserved from the source so callers can rely on first-match semantics.
type Set struct {
	words []string
}

// NewSet folds, trims and de-duplicates words. Empty entries are dropped.
func NewSet(words []string) Set {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = textnorm.Fold(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return Set{words: out}
}

// Len returns the number of keywords.
func (s Set) Len() int { return len(s.words) }

// Words returns a copy of the keywords.
func (s Set) Words() []string {
	return append([]string(nil), s.words...)
}

// ContainsAny reports whether folded contains any keyword.
// folded must already be passed through textnorm.Fold.
func (s Set) ContainsAny(folded string) bool {
	for _, w := range s.words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

// Longest returns the longest keyword contained in folded, preferring earlier
// entries on equal length. ok is false when nothing matches.
func (s Set) Longest(folded string) (match string, ok bool) {
	for _, w := range s.words {
		if len(w) > len(match) && strings.Contains(folded, w) {
			match, ok = w, true
		}
	}
	return match, ok
}

// Sets bundles the three keyword lists loaded at engine construction.
type Sets struct {
	DirectQuery Set
	Emotion     Set
	Personal    Set
}

// Get returns the set for k.
func (s Sets) Get(k Kind) Set {
	switch k {
	case KindDirectQuery:
		return s.DirectQuery
	case KindEmotion:
		return s.Emotion
	case KindPersonal:
		return s.Personal
	}
	return Set{}
}
