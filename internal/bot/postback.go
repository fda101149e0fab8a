package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyellow/tamly-chatbot-go/internal/lineutil"
)

// Postback payloads have the form "module:action$param1$param2".
const (
	postbackSplitChar = "$"

	moduleQuiz         = "quiz"
	actionAnswer       = "answer"
	moduleConversation = "conv"
	actionNew          = "new"
)

// PostbackData is a decoded postback payload.
type PostbackData struct {
	Module string
	Action string
	Params []string
}

// String encodes p back to its wire form.
func (p PostbackData) String() string {
	var b strings.Builder
	b.WriteString(p.Module)
	b.WriteByte(':')
	b.WriteString(p.Action)
	for _, v := range p.Params {
		b.WriteString(postbackSplitChar)
		b.WriteString(v)
	}
	return b.String()
}

// ParsePostback decodes a postback payload.
func ParsePostback(data string) (PostbackData, error) {
	if len(data) > lineutil.MaxPostbackData {
		return PostbackData{}, fmt.Errorf("postback data too long: %d bytes", len(data))
	}
	module, rest, ok := strings.Cut(data, ":")
	if !ok || module == "" {
		return PostbackData{}, errors.New("invalid postback format: missing ':' separator")
	}
	parts := strings.Split(rest, postbackSplitChar)
	if parts[0] == "" {
		return PostbackData{}, errors.New("invalid postback format: missing action")
	}
	return PostbackData{Module: module, Action: parts[0], Params: parts[1:]}, nil
}

// quizAnswerData encodes the postback for choosing option n (1-based).
func quizAnswerData(n int) string {
	return PostbackData{Module: moduleQuiz, Action: actionAnswer, Params: []string{strconv.Itoa(n)}}.String()
}

// quizAnswerIndex extracts the option index from a quiz answer postback.
func quizAnswerIndex(p PostbackData) (int, error) {
	if p.Module != moduleQuiz || p.Action != actionAnswer || len(p.Params) != 1 {
		return 0, fmt.Errorf("not a quiz answer: %s", p)
	}
	n, err := strconv.Atoi(p.Params[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid option index %q", p.Params[0])
	}
	return n, nil
}
