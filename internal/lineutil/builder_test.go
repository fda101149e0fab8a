package lineutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

func TestTruncateRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "xin chào", 20, "xin chào"},
		{"exact", "buồn", 4, "buồn"},
		{"cut with ellipsis", "Luôn luôn lo lắng", 8, "Luôn ..."},
		{"tiny limit", "trầm cảm", 2, "tr"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateRunes(tt.in, tt.limit); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}

func TestNewTextMessage_Truncates(t *testing.T) {
	t.Parallel()
	msg := NewTextMessage(strings.Repeat("ế", MaxTextMessageLength+10))
	if n := utf8.RuneCountInString(msg.Text); n != MaxTextMessageLength {
		t.Errorf("rune count = %d, want %d", n, MaxTextMessageLength)
	}
}

func TestNewQuickReply_Caps(t *testing.T) {
	t.Parallel()
	items := make([]QuickReplyItem, 20)
	for i := range items {
		items[i] = QuickReplyItem{Action: NewMessageAction("a", "a")}
	}
	items[0].ImageURL = "https://example.com/i.png"

	qr := NewQuickReply(items)
	if len(qr.Items) != MaxQuickReplyItemCount {
		t.Errorf("items = %d, want %d", len(qr.Items), MaxQuickReplyItemCount)
	}
	if qr.Items[0].ImageUrl == "" || qr.Items[1].ImageUrl != "" {
		t.Error("image URL should only be set where given")
	}
}

func TestNewPostbackAction(t *testing.T) {
	t.Parallel()
	a, ok := NewPostbackAction("5 - Luôn luôn, gần như mỗi ngày", "5 - Luôn luôn", "quiz:answer$5").(*messaging_api.PostbackAction)
	if !ok {
		t.Fatal("expected *PostbackAction")
	}
	if utf8.RuneCountInString(a.Label) > MaxQuickReplyLabel {
		t.Errorf("label %q exceeds %d runes", a.Label, MaxQuickReplyLabel)
	}
	if a.Data != "quiz:answer$5" || a.DisplayText != "5 - Luôn luôn" {
		t.Errorf("unexpected action %+v", a)
	}
}

func TestNewSender(t *testing.T) {
	t.Parallel()
	if NewSender("", "x") != nil {
		t.Error("empty name should keep the default profile")
	}
	s := NewSender("Tâm Lý", "https://example.com/a.png")
	if s.Name != "Tâm Lý" || s.IconUrl == "" {
		t.Errorf("unexpected sender %+v", s)
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()
	if got := PlainText("**Câu hỏi**: Bạn có hay buồn không?"); got != "Câu hỏi: Bạn có hay buồn không?" {
		t.Errorf("PlainText() = %q", got)
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{"blank", "  ", 10, nil},
		{"fits", "một hai", 10, []string{"một hai"}},
		{"paragraph boundary", "đoạn một\n\nđoạn hai", 12, []string{"đoạn một", "đoạn hai"}},
		{"line boundary", "dòng một\ndòng hai", 12, []string{"dòng một", "dòng hai"}},
		{"word boundary", "aaa bbb ccc", 8, []string{"aaa bbb", "ccc"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitText(tt.in, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitText() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLimitMessages_MovesQuickReply(t *testing.T) {
	t.Parallel()
	var msgs []messaging_api.MessageInterface
	for range 6 {
		msgs = append(msgs, NewTextMessage("x"))
	}
	last := NewTextMessageWithQuickReply("câu hỏi", nil, QuickReplyItem{Action: NewMessageAction("1", "1")})
	msgs = append(msgs, last)

	got := LimitMessages(msgs)
	if len(got) != MaxMessagesPerReply {
		t.Fatalf("len = %d, want %d", len(got), MaxMessagesPerReply)
	}
	if got[len(got)-1].(*messaging_api.TextMessage).QuickReply == nil {
		t.Error("quick reply should survive truncation")
	}
	if len(LimitMessages(msgs[:2])) != 2 {
		t.Error("short lists pass through")
	}
}
