package quiz

import (
	"strings"
	"unicode"

	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Severity is the self-reported intensity derived from a quiz answer.
type Severity string

// Severity levels.
const (
	Mild       Severity = "mild"
	Moderate   Severity = "moderate"
	Severe     Severity = "severe"
	VerySevere Severity = "very_severe"
)

// Vietnamese renders the level for prompts and fallback text.
func (s Severity) Vietnamese() string {
	switch s {
	case Mild:
		return "nhẹ"
	case Severe:
		return "nặng"
	case VerySevere:
		return "rất nặng"
	default:
		return "trung bình"
	}
}

// Tier collapses very_severe into severe for the three fallback templates.
func (s Severity) Tier() Severity {
	if s == VerySevere {
		return Severe
	}
	if s != Mild && s != Severe {
		return Moderate
	}
	return s
}

var labelSeverity = []struct {
	label    string
	severity Severity
}{
	{"không bao giờ", Mild},
	{"hiếm khi", Mild},
	{"đôi khi", Moderate},
	{"thường xuyên", Severe},
	{"luôn luôn", VerySevere},
}

var rankSeverity = map[int]Severity{1: Mild, 2: Mild, 3: Moderate, 4: Severe, 5: VerySevere}

// ParseSeverity maps an answer such as "4 - Thường xuyên", "Thường xuyên"
// or "4" to a severity. The label wins over the rank when both are present.
// Anything unrecognized is Moderate.
func ParseSeverity(answer string) Severity {
	folded := textnorm.Fold(strings.TrimSpace(answer))
	for _, ls := range labelSeverity {
		if strings.Contains(folded, ls.label) {
			return ls.severity
		}
	}
	if n, ok := leadingRank(folded); ok {
		if s, ok := rankSeverity[n]; ok {
			return s
		}
	}
	return Moderate
}

// leadingRank extracts a single leading digit not followed by another digit.
func leadingRank(s string) (int, bool) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	if len(s) > 1 && unicode.IsDigit(rune(s[1])) {
		return 0, false
	}
	return int(s[0] - '0'), true
}
