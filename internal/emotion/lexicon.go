package emotion

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Keyword is one weighted emotion keyword.
type Keyword struct {
	Word   string  `yaml:"word"`
	Weight float64 `yaml:"weight"`
}

// Entry binds a tag to its keywords.
type Entry struct {
	Tag      Tag
	Keywords []Keyword
}

// Lexicon holds keywords and greetings for every scored tag, in tie-break order.
type Lexicon struct {
	entries   []Entry
	greetings map[Tag]string
}

var defaultKeywords = map[Tag][]string{
	Sad:      {"buồn", "chán", "mệt mỏi", "khó chịu", "chán nản", "thất vọng", "u uất", "cô đơn", "tổn thương", "tuyệt vọng", "muốn khóc", "trầm cảm"},
	Happy:    {"vui", "hạnh phúc", "phấn khởi", "hào hứng", "yêu đời", "thư giãn", "tự tin", "hy vọng", "biết ơn"},
	Anxious:  {"lo âu", "lo lắng", "sợ", "hồi hộp", "bồn chồn", "mất ngủ", "bất an", "hoảng"},
	Stressed: {"stress", "áp lực", "căng thẳng", "quá tải", "kiệt sức", "deadline"},
	Angry:    {"tức giận", "giận", "bực", "cáu", "kích động", "ức chế", "phẫn nộ"},
	Confused: {"hoang mang", "bối rối", "rối trí", "không hiểu", "mơ hồ", "lạc lõng"},
}

// heavier cues count double
var defaultWeights = map[string]float64{
	"trầm cảm":   2,
	"tuyệt vọng": 2,
	"hoảng":      2,
	"kiệt sức":   2,
}

var defaultGreetings = map[Tag]string{
	Sad:      "Tôi hiểu cảm giác buồn có thể khó khăn, nhưng bạn thật mạnh mẽ khi chia sẻ!",
	Happy:    "Năng lượng tích cực của bạn thật tuyệt! Hãy cùng tìm hiểu thêm nhé.",
	Anxious:  "Cảm ơn bạn đã mở lòng. Chúng ta sẽ cùng làm mọi thứ nhẹ nhàng hơn.",
	Stressed: "Áp lực là bình thường, và bạn đang làm rất tốt khi đối mặt!",
	Angry:    "Cơn giận là cảm xúc rất con người, cảm ơn bạn đã tin tưởng kể cho tôi nghe!",
	Confused: "Bối rối là một phần tự nhiên khi tìm hiểu bản thân. Chúng ta sẽ cùng làm rõ từng chút nhé.",
	Neutral:  "Cảm ơn bạn đã chia sẻ! Tôi ở đây để hỗ trợ bạn.",
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() Lexicon {
	lex := Lexicon{greetings: make(map[Tag]string, len(defaultGreetings))}
	for t, g := range defaultGreetings {
		lex.greetings[t] = g
	}
	for _, t := range Ordered {
		e := Entry{Tag: t}
		for _, w := range defaultKeywords[t] {
			weight := 1.0
			if dw, ok := defaultWeights[w]; ok {
				weight = dw
			}
			e.Keywords = append(e.Keywords, Keyword{Word: textnorm.Fold(w), Weight: weight})
		}
		lex.entries = append(lex.entries, e)
	}
	return lex
}

// Entries returns a copy of the lexicon entries.
func (l Lexicon) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = Entry{Tag: e.Tag, Keywords: append([]Keyword(nil), e.Keywords...)}
	}
	return out
}

type lexiconFile struct {
	Emotions []struct {
		Tag      string    `yaml:"tag"`
		Greeting string    `yaml:"greeting"`
		Replace  bool      `yaml:"replace"`
		Keywords []Keyword `yaml:"keywords"`
	} `yaml:"emotions"`
}

// ParseLexicon reads a YAML override on top of the defaults:
//
//	emotions:
//	  - tag: anxious
//	    greeting: "..."
//	    replace: false       # true discards the built-in keywords for this tag
//	    keywords:
//	      - word: hồi hộp
//	        weight: 1.5
//
// Tag order stays fixed regardless of file order. A missing weight means 1.
func ParseLexicon(r io.Reader) (Lexicon, error) {
	var file lexiconFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Lexicon{}, fmt.Errorf("decode lexicon: %w", err)
	}

	lex := DefaultLexicon()
	for _, em := range file.Emotions {
		tag := Tag(strings.ToLower(strings.TrimSpace(em.Tag)))
		if !tag.Valid() {
			return Lexicon{}, fmt.Errorf("unknown emotion tag %q", em.Tag)
		}
		if em.Greeting != "" {
			lex.greetings[tag] = em.Greeting
		}
		if tag == Neutral {
			if len(em.Keywords) > 0 {
				return Lexicon{}, errors.New("neutral cannot have keywords")
			}
			continue
		}

		e := &lex.entries[tag.index()]
		if em.Replace {
			e.Keywords = nil
		}
		for _, kw := range em.Keywords {
			word := textnorm.Fold(strings.TrimSpace(kw.Word))
			if word == "" {
				continue
			}
			if kw.Weight < 0 {
				return Lexicon{}, fmt.Errorf("negative weight for %q", kw.Word)
			}
			if kw.Weight == 0 {
				kw.Weight = 1
			}
			e.Keywords = append(e.Keywords, Keyword{Word: word, Weight: kw.Weight})
		}
	}
	return lex, nil
}

// LoadLexicon reads a YAML override from path.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided path
	if err != nil {
		return Lexicon{}, err
	}
	defer func() { _ = f.Close() }()
	return ParseLexicon(f)
}
