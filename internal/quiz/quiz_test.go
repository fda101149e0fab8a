package quiz

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
)

func TestOptions(t *testing.T) {
	t.Parallel()
	labeled := strings.Join(Options(true), "|")
	if labeled != "1 - Không bao giờ|2 - Hiếm khi|3 - Đôi khi|4 - Thường xuyên|5 - Luôn luôn" {
		t.Errorf("Options(true) = %s", labeled)
	}
	unlabeled := strings.Join(Options(false), "|")
	if unlabeled != "Không bao giờ|Hiếm khi|Đôi khi|Thường xuyên|Luôn luôn" {
		t.Errorf("Options(false) = %s", unlabeled)
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		answer string
		want   Severity
	}{
		{"1 - Không bao giờ", Mild},
		{"2 - Hiếm khi", Mild},
		{"3 - Đôi khi", Moderate},
		{"4 - Thường xuyên", Severe},
		{"5 - Luôn luôn", VerySevere},
		{"Không bao giờ", Mild},
		{"THƯỜNG XUYÊN", Severe},
		{"4", Severe},
		{" 5 ", VerySevere},
		{"1 - Luôn luôn", VerySevere},
		{"45", Moderate},
		{"9", Moderate},
		{"", Moderate},
		{"có lẽ vậy", Moderate},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			t.Parallel()
			if got := ParseSeverity(tt.answer); got != tt.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestSeverityTier(t *testing.T) {
	t.Parallel()
	tests := map[Severity]Severity{
		Mild:           Mild,
		Moderate:       Moderate,
		Severe:         Severe,
		VerySevere:     Severe,
		Severity("?"):  Moderate,
	}
	for in, want := range tests {
		if got := in.Tier(); got != want {
			t.Errorf("%v.Tier() = %v, want %v", in, got, want)
		}
	}
}

func TestTracker(t *testing.T) {
	t.Parallel()
	var tr Tracker

	if tr.State() != Idle {
		t.Fatal("new tracker should be idle")
	}
	if _, err := tr.Consume(); !errors.Is(err, apperrors.ErrNoPendingQuiz) {
		t.Errorf("Consume() on idle = %v, want ErrNoPendingQuiz", err)
	}

	first := &Quiz{Question: "Bạn có thường buồn?", Options: Options(true)}
	tr.Issue(first)
	if tr.State() != Pending {
		t.Fatal("Issue() should move to pending")
	}

	second := &Quiz{Question: "Bạn có thường lo lắng?", Options: Options(true)}
	tr.Issue(second)

	got, err := tr.Consume()
	if err != nil || got != second {
		t.Fatalf("Consume() = (%v, %v), want the latest quiz", got, err)
	}
	if tr.State() != Idle {
		t.Error("Consume() should move to idle")
	}
	if _, err := tr.Consume(); err == nil {
		t.Error("a quiz must be consumed exactly once")
	}
}

func TestQuizResolve(t *testing.T) {
	t.Parallel()
	q := &Quiz{Options: Options(true)}

	tests := []struct {
		answer string
		want   string
		ok     bool
	}{
		{"4 - Thường xuyên", "4 - Thường xuyên", true},
		{"4", "4 - Thường xuyên", true},
		{"đôi khi", "3 - Đôi khi", true},
		{"6", "", false},
		{"", "", false},
		{"thỉnh thoảng", "", false},
	}
	for _, tt := range tests {
		got, ok := q.Resolve(tt.answer)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.answer, got, ok, tt.want, tt.ok)
		}
	}

	if _, ok := (*Quiz)(nil).Resolve("1"); ok {
		t.Error("nil quiz should not resolve")
	}
	if opt, ok := q.Option(1); !ok || opt != "1 - Không bao giờ" {
		t.Errorf("Option(1) = (%q, %v)", opt, ok)
	}
	if _, ok := q.Option(0); ok {
		t.Error("Option(0) should be out of range")
	}
}
