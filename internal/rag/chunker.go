package rag

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults, in runes.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size runes, preferring the
// coarsest separator that works. Consecutive chunks share up to Overlap
// runes of context.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter with DefaultSeparators. An overlap that
// is negative or not smaller than size is reset to zero.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the non-blank chunks of text.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	var out []string
	for _, c := range s.split(text, seps) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, small []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= s.Size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, s.merge(small, sep)...)
	}
	return out
}

// merge packs pieces into chunks no longer than Size, carrying the tail
// of each chunk (up to Overlap runes) into the next.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		out     []string
		current []string
		total   int
	)
	joinedLen := func(extra int) int {
		if len(current) == 0 {
			return extra
		}
		return total + sepLen + extra
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && joinedLen(n) > s.Size {
			out = append(out, strings.Join(current, sep))
			for len(current) > 0 && (total > s.Overlap || joinedLen(n) > s.Size) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total = joinedLen(n)
		current = append(current, p)
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, sep))
	}
	return out
}
