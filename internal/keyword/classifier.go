package keyword

import (
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Intent is the routing decision for one utterance.
type Intent int

// Intents.
const (
	Unclear Intent = iota
	DirectQuery
	EmotionalDisclosure
)

func (i Intent) String() string {
	switch i {
	case DirectQuery:
		return "direct_query"
	case EmotionalDisclosure:
		return "emotional_disclosure"
	default:
		return "unclear"
	}
}

// Classifier routes utterances by keyword containment.
// It is safe for concurrent use; Sets are never mutated after construction.
type Classifier struct {
	sets            Sets
	requirePersonal bool
}

// NewClassifier creates a classifier over sets. With requirePersonal, an
// emotional disclosure needs both a personal and an emotion keyword;
// otherwise an emotion keyword alone is enough.
func NewClassifier(sets Sets, requirePersonal bool) *Classifier {
	return &Classifier{sets: sets, requirePersonal: requirePersonal}
}

// Classify returns the intent for utterance.
// Direct-query keywords are checked first and win over emotional language.
func (c *Classifier) Classify(utterance string) Intent {
	folded := textnorm.Fold(utterance)

	if c.sets.DirectQuery.ContainsAny(folded) {
		return DirectQuery
	}
	if !c.sets.Emotion.ContainsAny(folded) {
		return Unclear
	}
	if c.requirePersonal && !c.sets.Personal.ContainsAny(folded) {
		return Unclear
	}
	return EmotionalDisclosure
}

// EmotionKeyword returns the longest emotion keyword in utterance.
func (c *Classifier) EmotionKeyword(utterance string) (string, bool) {
	return c.sets.Emotion.Longest(textnorm.Fold(utterance))
}
