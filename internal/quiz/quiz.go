// Package quiz models the five-point severity quiz and the per-session state
// machine that tracks whether one is waiting for an answer.
package quiz

import (
	"strconv"
	"strings"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Scale labels from lowest to highest frequency.
var scaleLabels = [5]string{"Không bao giờ", "Hiếm khi", "Đôi khi", "Thường xuyên", "Luôn luôn"}

// Options returns the five answer options. Labeled options carry a rank
// prefix ("1 - Không bao giờ"); unlabeled ones are the bare phrases.
func Options(labeled bool) []string {
	out := make([]string, len(scaleLabels))
	for i, l := range scaleLabels {
		if labeled {
			out[i] = strconv.Itoa(i+1) + " - " + l
		} else {
			out[i] = l
		}
	}
	return out
}

// Quiz is a generated severity question awaiting an answer.
type Quiz struct {
	Question        string    `json:"question"`
	Options         []string  `json:"options"`
	SourceUtterance string    `json:"source_utterance"`
	IssuedAt        time.Time `json:"issued_at"`
}

// Option returns the option at 1-based index i.
func (q *Quiz) Option(i int) (string, bool) {
	if q == nil || i < 1 || i > len(q.Options) {
		return "", false
	}
	return q.Options[i-1], true
}

// Resolve maps a free-form answer to one of the quiz options. It accepts the
// option text, its bare label, or its rank ("4").
func (q *Quiz) Resolve(answer string) (string, bool) {
	if q == nil {
		return "", false
	}
	folded := textnorm.Fold(strings.TrimSpace(answer))
	if folded == "" {
		return "", false
	}
	for _, opt := range q.Options {
		if textnorm.Fold(opt) == folded {
			return opt, true
		}
	}
	if n, ok := leadingRank(folded); ok && folded == strconv.Itoa(n) {
		return q.Option(n)
	}
	for i, l := range scaleLabels {
		if folded == textnorm.Fold(l) {
			return q.Option(i + 1)
		}
	}
	return "", false
}

// State is the quiz lifecycle state of one session.
type State int

// States.
const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Tracker holds at most one pending quiz. There is no timeout: a quiz stays
// pending until answered or replaced. Tracker is not safe for concurrent use;
// each session is processed sequentially.
type Tracker struct {
	Pending *Quiz `json:"pending,omitempty"`
}

// State reports Idle or Pending.
func (t *Tracker) State() State {
	if t.Pending != nil {
		return Pending
	}
	return Idle
}

// Issue moves to Pending with q, replacing any quiz still outstanding.
func (t *Tracker) Issue(q *Quiz) {
	t.Pending = q
}

// Consume returns the pending quiz and moves to Idle. The quiz is cleared
// before the caller does anything with it, so it is consumed exactly once
// even if later processing fails.
func (t *Tracker) Consume() (*Quiz, error) {
	q := t.Pending
	t.Pending = nil
	if q == nil {
		return nil, errors.ErrNoPendingQuiz
	}
	return q, nil
}

// Reset drops any pending quiz.
func (t *Tracker) Reset() {
	t.Pending = nil
}
