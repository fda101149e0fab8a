package rag

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitter_Split(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{"fits in one chunk", 100, 0, "lo âu kéo dài", []string{"lo âu kéo dài"}},
		{"words packed greedily", 10, 0, "aaaa bbbb cccc", []string{"aaaa bbbb", "cccc"}},
		{"overlap carries the tail", 10, 4, "aaaa bbbb cccc", []string{"aaaa bbbb", "bbbb cccc"}},
		{"paragraphs kept together", 100, 0, "đoạn một.\n\nđoạn hai.", []string{"đoạn một.\n\nđoạn hai."}},
		{"paragraphs split when too long", 10, 0, "đoạn một.\n\nđoạn hai.", []string{"đoạn một.", "đoạn hai."}},
		{"unbroken word cut by rune", 4, 0, "abcdefghij", []string{"abcd", "efgh", "ij"}},
		{"blank input", 10, 0, "  \n\n  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewSplitter(tt.size, tt.overlap).Split(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitter_ChunksRespectSize(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("Rối loạn trầm cảm chủ yếu có các triệu chứng kéo dài ít nhất hai tuần. ", 40)
	s := NewSplitter(120, 20)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 120 {
			t.Errorf("chunk %d has %d runes, limit 120", i, n)
		}
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{0, 0, DefaultChunkSize, 0},
		{100, -1, 100, 0},
		{100, 100, 100, 0},
		{100, 20, 100, 20},
	}
	for _, tt := range tests {
		s := NewSplitter(tt.size, tt.overlap)
		if s.Size != tt.wantSize || s.Overlap != tt.wantOverlap {
			t.Errorf("NewSplitter(%d, %d) = {%d, %d}, want {%d, %d}",
				tt.size, tt.overlap, s.Size, s.Overlap, tt.wantSize, tt.wantOverlap)
		}
	}
}
