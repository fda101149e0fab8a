// Package textnorm normalizes Vietnamese text before keyword matching.
//
// Vietnamese diacritics can arrive precomposed (NFC) or as base letters plus
// combining marks (NFD) depending on the client keyboard. Keyword lists are
// stored in NFC, so every utterance is recomposed before it is lower-cased.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s in NFC form, lower-cased with Vietnamese rules.
// A Caser is stateful, so one is built per call.
func Fold(s string) string {
	return cases.Lower(language.Vietnamese).String(norm.NFC.String(s))
}

// IsBlank reports whether s is empty or contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TruncateRunes returns the first n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
