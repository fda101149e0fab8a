package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/tamly-chatbot-go/internal/composer"
	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
)

const testQuestion = "Bạn cảm thấy buồn thường xuyên không?"

// failingLoader fails every read.
type failingLoader struct{}

func (failingLoader) Get(context.Context, string) (*conversation.Session, error) {
	return nil, errors.New("database is locked")
}
func (failingLoader) Save(context.Context, *conversation.Session) error { return nil }

func newTestProcessor(t *testing.T, sessions SessionLoader, cfg *config.BotConfig, llm *ratelimit.Keyed) *Processor {
	t.Helper()
	quiet := logger.NewWithWriter("error", io.Discard)
	sets := keyword.Defaults()
	collab := composer.CollaboratorFunc(func(_ context.Context, query string) (string, error) {
		if strings.Contains(query, "trắc nghiệm") {
			return testQuestion, nil
		}
		return "Theo DSM-5, khi cảm xúc buồn kéo dài trên hai tuần, bạn nên trò chuyện với chuyên gia.", nil
	})
	comp, err := composer.New(collab, emotion.NewDetector(emotion.DefaultLexicon()), composer.Options{
		LabeledOptions: true,
		Topics:         sets.Emotion,
		Logger:         quiet,
	})
	if err != nil {
		t.Fatalf("composer.New() error = %v", err)
	}
	engine, err := conversation.NewEngine(conversation.Config{
		Classifier: keyword.NewClassifier(sets, true),
		Composer:   comp,
		Logger:     quiet,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return NewProcessor(ProcessorConfig{
		Engine:     engine,
		Sessions:   sessions,
		LLMLimiter: llm,
		Logger:     quiet,
		BotConfig:  cfg,
	})
}

func textOf(t *testing.T, msgs []messaging_api.MessageInterface) *messaging_api.TextMessage {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("no messages")
	}
	tm, ok := msgs[len(msgs)-1].(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("last message is %T, want *TextMessage", msgs[len(msgs)-1])
	}
	return tm
}

func TestProcessMessage_QuizRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := conversation.NewMemoryStore()
	p := newTestProcessor(t, store, nil, nil)

	event := webhook.MessageEvent{
		Source:  webhook.UserSource{UserId: "U1234567890"},
		Message: webhook.TextMessageContent{Text: "Hôm nay tôi cảm thấy buồn"},
	}
	msgs, err := p.ProcessMessage(ctx, event)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	tm := textOf(t, msgs)
	if strings.Contains(tm.Text, "**") {
		t.Errorf("markdown leaked into LINE text: %q", tm.Text)
	}
	if !strings.Contains(tm.Text, testQuestion) {
		t.Errorf("quiz text %q lacks the question", tm.Text)
	}
	if tm.QuickReply == nil || len(tm.QuickReply.Items) != 5 {
		t.Fatalf("want 5 quick reply options, got %+v", tm.QuickReply)
	}
	action := tm.QuickReply.Items[3].Action.(*messaging_api.PostbackAction)
	if action.Data != "quiz:answer$4" || action.DisplayText != "4 - Thường xuyên" {
		t.Errorf("option 4 action = %+v", action)
	}

	s, err := store.Get(ctx, SessionID("U1234567890"))
	if err != nil {
		t.Fatalf("session not saved: %v", err)
	}
	if s.Quiz.State() != quiz.Pending {
		t.Fatal("quiz should be pending after disclosure")
	}

	msgs, err = p.handlePostback(ctx, "U1234567890", action.Data)
	if err != nil {
		t.Fatalf("handlePostback() error = %v", err)
	}
	if tm := textOf(t, msgs); tm.Text == "" || tm.QuickReply != nil {
		t.Errorf("answer reply = %+v", tm)
	}

	s, _ = store.Get(ctx, SessionID("U1234567890"))
	if s.Quiz.State() != quiz.Idle {
		t.Error("quiz should be consumed by the answer")
	}
	if got := s.Transcript[len(s.Transcript)-2].Content; got != "4 - Thường xuyên" {
		t.Errorf("recorded answer = %q", got)
	}

	// Pressing the same button again finds no quiz.
	msgs, err = p.handlePostback(ctx, "U1234567890", action.Data)
	if err != nil {
		t.Fatalf("handlePostback() error = %v", err)
	}
	if got := textOf(t, msgs).Text; got != quizExpiredMessage {
		t.Errorf("stale postback reply = %q", got)
	}
}

func TestHandleText_TypedAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := conversation.NewMemoryStore()
	p := newTestProcessor(t, store, nil, nil)

	if _, err := p.handleText(ctx, "U1", "Tôi thấy buồn quá"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.handleText(ctx, "U1", "thường xuyên"); err != nil {
		t.Fatal(err)
	}
	s, _ := store.Get(ctx, SessionID("U1"))
	if s.Quiz.State() != quiz.Idle {
		t.Fatal("typed option should answer the quiz")
	}
	if got := s.Transcript[len(s.Transcript)-2].Content; got != "4 - Thường xuyên" {
		t.Errorf("recorded answer = %q", got)
	}
}

func TestHandleText_Commands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := conversation.NewMemoryStore()
	p := newTestProcessor(t, store, nil, nil)

	if _, err := p.handleText(ctx, "U1", "Tôi thấy buồn quá"); err != nil {
		t.Fatal(err)
	}

	msgs, err := p.handleText(ctx, "U1", "Hướng dẫn")
	if err != nil {
		t.Fatal(err)
	}
	if tm := textOf(t, msgs); tm.Text != helpMessage || tm.QuickReply == nil {
		t.Errorf("help reply = %+v", tm)
	}

	msgs, err = p.handleText(ctx, "U1", "  Cuộc trò chuyện mới ")
	if err != nil {
		t.Fatal(err)
	}
	if got := textOf(t, msgs).Text; got != newConversationDone {
		t.Errorf("new conversation reply = %q", got)
	}
	s, _ := store.Get(ctx, SessionID("U1"))
	if len(s.Transcript) != 0 || s.Quiz.State() != quiz.Idle {
		t.Errorf("session not reset: %+v", s)
	}
}

func TestProcessMessage_Filtering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := newTestProcessor(t, conversation.NewMemoryStore(), &config.BotConfig{WebhookTimeout: time.Minute, MaxMessageLength: 10}, nil)

	tests := []struct {
		name  string
		event webhook.MessageEvent
		want  string
	}{
		{
			name:  "group chats are ignored",
			event: webhook.MessageEvent{Source: webhook.GroupSource{GroupId: "G1", UserId: "U1"}, Message: webhook.TextMessageContent{Text: "buồn"}},
		},
		{
			name:  "non-text",
			event: webhook.MessageEvent{Source: webhook.UserSource{UserId: "U1"}, Message: webhook.StickerMessageContent{}},
			want:  nonTextMessage,
		},
		{
			name:  "blank",
			event: webhook.MessageEvent{Source: webhook.UserSource{UserId: "U1"}, Message: webhook.TextMessageContent{Text: "   "}},
		},
		{
			name:  "too long",
			event: webhook.MessageEvent{Source: webhook.UserSource{UserId: "U1"}, Message: webhook.TextMessageContent{Text: strings.Repeat("á", 11)}},
			want:  "Tin nhắn dài quá (hơn 10 ký tự). Bạn chia nhỏ rồi gửi lại giúp mình nhé.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msgs, err := p.ProcessMessage(ctx, tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == "" {
				if len(msgs) != 0 {
					t.Errorf("want no reply, got %d messages", len(msgs))
				}
				return
			}
			if got := textOf(t, msgs).Text; got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleText_LLMRateLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	llm := ratelimit.NewKeyed(ratelimit.KeyedConfig{Name: ratelimit.NameLLM, Burst: 1, RefillPerSec: 1.0 / 3600, DailyLimit: 1})
	defer llm.Stop()
	p := newTestProcessor(t, conversation.NewMemoryStore(), &config.BotConfig{
		WebhookTimeout: time.Minute, MaxMessageLength: 100, LLMRefillPerHour: 1,
	}, llm)

	if _, err := p.handleText(ctx, "U1", "trầm cảm là gì"); err != nil {
		t.Fatal(err)
	}
	msgs, err := p.handleText(ctx, "U1", "lo âu là gì")
	if err != nil {
		t.Fatal(err)
	}
	if got := textOf(t, msgs).Text; got != llmDailyLimitMessage {
		t.Errorf("limited reply = %q", got)
	}

	// Commands bypass the generation budget.
	msgs, _ = p.handleText(ctx, "U1", "help")
	if got := textOf(t, msgs).Text; got != helpMessage {
		t.Errorf("help reply = %q", got)
	}
}

func TestHandleText_SessionStoreFailure(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t, failingLoader{}, nil, nil)
	if _, err := p.handleText(context.Background(), "U1", "trầm cảm là gì"); err == nil {
		t.Fatal("want error when the session cannot be loaded")
	}
}

func TestHandlePostback_Malformed(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t, conversation.NewMemoryStore(), nil, nil)
	for _, data := range []string{"garbage", "quiz:answer$abc", "other:thing"} {
		msgs, err := p.handlePostback(context.Background(), "U1", data)
		if err != nil || len(msgs) != 0 {
			t.Errorf("handlePostback(%q) = %v, %v; want silently ignored", data, msgs, err)
		}
	}
}

func TestProcessFollow(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t, conversation.NewMemoryStore(), nil, nil)
	msgs, err := p.ProcessFollow(webhook.FollowEvent{Source: webhook.UserSource{UserId: "U1"}})
	if err != nil {
		t.Fatal(err)
	}
	tm := textOf(t, msgs)
	if !strings.HasPrefix(tm.Text, "Chào bạn") || tm.QuickReply == nil || len(tm.QuickReply.Items) != 2 {
		t.Errorf("welcome = %+v", tm)
	}
	action := tm.QuickReply.Items[0].Action.(*messaging_api.PostbackAction)
	if action.Data != "conv:new" {
		t.Errorf("new conversation action data = %q", action.Data)
	}
}
