// Package emotion detects the dominant emotion in a Vietnamese utterance by
// weighted keyword counting and supplies the matching opening sentence.
package emotion

import (
	"strings"

	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Tag is one of a closed set of emotion labels.
type Tag string

// Emotion tags. The declaration order of Ordered decides ties.
const (
	Sad      Tag = "sad"
	Happy    Tag = "happy"
	Anxious  Tag = "anxious"
	Stressed Tag = "stressed"
	Angry    Tag = "angry"
	Confused Tag = "confused"
	Neutral  Tag = "neutral"
)

// Ordered lists the scored tags in tie-break order. Neutral is never scored.
var Ordered = []Tag{Sad, Happy, Anxious, Stressed, Angry, Confused}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t == Neutral || t.index() >= 0
}

func (t Tag) index() int {
	for i, o := range Ordered {
		if o == t {
			return i
		}
	}
	return -1
}

// Label returns a short Vietnamese word for the tag, used as a quiz topic
// when the utterance has no recognizable emotion keyword.
func (t Tag) Label() string {
	switch t {
	case Sad:
		return "buồn"
	case Happy:
		return "vui"
	case Anxious:
		return "lo âu"
	case Stressed:
		return "căng thẳng"
	case Angry:
		return "tức giận"
	case Confused:
		return "bối rối"
	default:
		return "cảm xúc"
	}
}

// positive holds emotion labels that get a maintenance answer instead of a
// criteria answer.
var positive = map[string]struct{}{
	"happy": {}, "vui": {}, "hạnh phúc": {}, "phấn khởi": {},
	"hào hứng": {}, "yêu đời": {}, "thư giãn": {},
}

// IsPositive reports whether label (a tag or a Vietnamese emotion word) is positive.
func IsPositive(label string) bool {
	_, ok := positive[textnorm.Fold(strings.TrimSpace(label))]
	return ok
}

// Detector scores utterances against a Lexicon.
// It is safe for concurrent use.
type Detector struct {
	lex Lexicon
}

// NewDetector creates a detector. A zero Lexicon falls back to DefaultLexicon.
func NewDetector(lex Lexicon) *Detector {
	if len(lex.entries) == 0 {
		lex = DefaultLexicon()
	}
	return &Detector{lex: lex}
}

// Scores returns the weighted keyword score of every scored tag.
func (d *Detector) Scores(utterance string) map[Tag]float64 {
	folded := textnorm.Fold(utterance)
	scores := make(map[Tag]float64, len(Ordered))
	for _, e := range d.lex.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(folded, kw.Word) {
				scores[e.Tag] += kw.Weight
			}
		}
	}
	return scores
}

// Detect returns the highest-scoring tag. Ties go to the tag declared first.
// With no keyword hits, punctuation and negation cues decide:
//   - "tôi không" / "tôi chẳng" → sad
//   - "?" with "làm sao" or "tại sao" → confused
//   - "!" → stressed
//   - otherwise neutral
func (d *Detector) Detect(utterance string) Tag {
	scores := d.Scores(utterance)

	best, bestScore := Neutral, 0.0
	for _, t := range Ordered {
		if s := scores[t]; s > bestScore {
			best, bestScore = t, s
		}
	}
	if best != Neutral {
		return best
	}

	folded := textnorm.Fold(utterance)
	switch {
	case strings.Contains(folded, "tôi không") || strings.Contains(folded, "tôi chẳng"):
		return Sad
	case strings.Contains(folded, "?") && (strings.Contains(folded, "làm sao") || strings.Contains(folded, "tại sao")):
		return Confused
	case strings.Contains(folded, "!"):
		return Stressed
	}
	return Neutral
}

// Greeting returns the opening sentence for t.
func (d *Detector) Greeting(t Tag) string {
	if g, ok := d.lex.greetings[t]; ok && g != "" {
		return g
	}
	return defaultGreetings[Neutral]
}
