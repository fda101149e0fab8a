// Package bot turns LINE events into conversation turns and renders the
// results as LINE messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	"github.com/garyellow/tamly-chatbot-go/internal/ctxutil"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/lineutil"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Commands, compared after folding.
var (
	newConversationKeywords = []string{"cuộc trò chuyện mới", "trò chuyện mới", "/new"}
	helpKeywords            = []string{"hướng dẫn", "trợ giúp", "help", "/help"}
)

const (
	newConversationLabel = "Cuộc trò chuyện mới"
	helpLabel            = "Hướng dẫn"
)

// Canned replies.
const (
	welcomeMessage = "Chào bạn, mình là Tâm Lý 🌱\n\n" +
		"Mình ở đây để lắng nghe và cung cấp thông tin về sức khỏe tinh thần."

	helpMessage = "Bạn có thể:\n" +
		"• Hỏi về một chủ đề, ví dụ \"trầm cảm là gì?\"\n" +
		"• Chia sẻ cảm xúc, ví dụ \"mình cảm thấy buồn quá\". Mình sẽ hỏi thêm một câu trắc nghiệm ngắn, bạn chọn đáp án bằng các nút bên dưới.\n" +
		"• Gõ \"cuộc trò chuyện mới\" để lưu cuộc trò chuyện hiện tại và bắt đầu lại.\n\n" +
		"Mình không thay thế chuyên gia. Nếu bạn đang gặp nguy hiểm, hãy gọi 115."

	nonTextMessage        = "Hiện mình chỉ đọc được tin nhắn văn bản. Bạn nhắn cho mình bằng chữ nhé."
	tooLongMessage        = "Tin nhắn dài quá (hơn %d ký tự). Bạn chia nhỏ rồi gửi lại giúp mình nhé."
	userRateLimitMessage  = "⏳ Bạn gửi tin hơi nhanh, chờ mình một chút rồi thử lại nhé."
	llmRateLimitMessage   = "⏳ Mình cần nghỉ một lát. Khoảng %d phút nữa bạn nhắn lại nhé."
	llmDailyLimitMessage  = "⏳ Hôm nay bạn đã dùng hết lượt trò chuyện. Hẹn gặp lại bạn vào ngày mai nhé."
	quizExpiredMessage    = "Câu hỏi này đã hết hiệu lực. Bạn cứ tiếp tục chia sẻ với mình nhé."
	newConversationDone   = "Đã lưu cuộc trò chuyện. Mình bắt đầu lại nhé, bạn muốn chia sẻ điều gì?"
	newConversationFailed = "Mình chưa lưu được cuộc trò chuyện, bạn thử lại sau nhé."
)

// SessionLoader is the subset of a session store the processor needs.
type SessionLoader interface {
	Get(ctx context.Context, id string) (*conversation.Session, error)
	Save(ctx context.Context, s *conversation.Session) error
}

// Processor handles the LINE events that reach a conversation.
type Processor struct {
	engine      *conversation.Engine
	sessions    SessionLoader
	locks       *conversation.Locks
	userLimiter *ratelimit.Keyed
	llmLimiter  *ratelimit.Keyed
	sender      *messaging_api.Sender
	logger      *logger.Logger

	turnTimeout      time.Duration
	maxMessageLength int
	llmRefillPerHour float64
	now              func() time.Time
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Engine   *conversation.Engine
	Sessions SessionLoader
	Locks    *conversation.Locks // shared with other surfaces; optional

	UserLimiter *ratelimit.Keyed
	LLMLimiter  *ratelimit.Keyed

	// Sender sets the name and avatar on replies; nil keeps the channel's.
	Sender *messaging_api.Sender

	Logger    *logger.Logger
	BotConfig *config.BotConfig
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	locks := cfg.Locks
	if locks == nil {
		locks = conversation.NewLocks()
	}
	p := &Processor{
		engine:           cfg.Engine,
		sessions:         cfg.Sessions,
		locks:            locks,
		userLimiter:      cfg.UserLimiter,
		llmLimiter:       cfg.LLMLimiter,
		sender:           cfg.Sender,
		logger:           log.WithModule("bot"),
		turnTimeout:      config.WebhookProcessing,
		maxMessageLength: config.LINEMaxIncomingTextLength,
		now:              time.Now,
	}
	if cfg.BotConfig != nil {
		p.turnTimeout = cfg.BotConfig.WebhookTimeout
		p.maxMessageLength = cfg.BotConfig.MaxMessageLength
		p.llmRefillPerHour = cfg.BotConfig.LLMRefillPerHour
	}
	return p
}

// ProcessMessage handles a message event. Only 1:1 chats are answered.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	if !IsPersonalChat(event.Source) {
		return nil, nil
	}
	chatID := GetChatID(event.Source)
	ctx = ctxutil.WithChatID(ctx, chatID)
	ctx = ctxutil.WithUserID(ctx, GetUserID(event.Source))

	textMsg, ok := event.Message.(webhook.TextMessageContent)
	if !ok {
		return p.text(nonTextMessage), nil
	}
	return p.handleText(ctx, chatID, textMsg.Text)
}

// ProcessPostback handles a postback event from a quick reply button.
func (p *Processor) ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error) {
	if !IsPersonalChat(event.Source) {
		return nil, nil
	}
	chatID := GetChatID(event.Source)
	ctx = ctxutil.WithChatID(ctx, chatID)
	ctx = ctxutil.WithUserID(ctx, GetUserID(event.Source))
	return p.handlePostback(ctx, chatID, event.Postback.Data)
}

// ProcessFollow greets a user who adds the bot as a friend.
func (p *Processor) ProcessFollow(event webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	p.logger.WithField("chat_id", logChatID(GetChatID(event.Source))).Info("New follower")
	return p.helpMessages(welcomeMessage + "\n\n" + helpMessage), nil
}

func (p *Processor) handleText(ctx context.Context, chatID, text string) ([]messaging_api.MessageInterface, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if msgs, ok := p.checkUserRateLimit(chatID); !ok {
		return msgs, nil
	}
	if n := len([]rune(text)); n > p.maxMessageLength {
		p.logger.WithField("length", n).Warn("Text message too long")
		return p.text(fmt.Sprintf(tooLongMessage, p.maxMessageLength)), nil
	}

	folded := textnorm.Fold(text)
	switch {
	case slices.Contains(newConversationKeywords, folded):
		return p.startNewConversation(ctx, chatID)
	case slices.Contains(helpKeywords, folded):
		return p.helpMessages(helpMessage), nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	return p.withSession(ctx, chatID, func(s *conversation.Session) ([]messaging_api.MessageInterface, error) {
		if msgs, ok := p.checkLLMRateLimit(chatID); !ok {
			return msgs, nil
		}
		// A typed option ("4", "Thường xuyên") answers the pending quiz.
		if option, ok := s.Quiz.Pending.Resolve(text); ok {
			return p.answer(ctx, s, option)
		}
		reply := p.engine.ProcessInput(ctx, s, text)
		return p.replyMessages(reply), nil
	})
}

func (p *Processor) handlePostback(ctx context.Context, chatID, data string) ([]messaging_api.MessageInterface, error) {
	if msgs, ok := p.checkUserRateLimit(chatID); !ok {
		return msgs, nil
	}
	pb, err := ParsePostback(data)
	if err != nil {
		p.logger.WithError(err).Warn("Ignoring malformed postback")
		return nil, nil
	}

	switch pb.Module {
	case moduleConversation:
		if pb.Action == actionNew {
			return p.startNewConversation(ctx, chatID)
		}
	case moduleQuiz:
		n, err := quizAnswerIndex(pb)
		if err != nil {
			p.logger.WithError(err).Warn("Ignoring malformed quiz postback")
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
		defer cancel()
		return p.withSession(ctx, chatID, func(s *conversation.Session) ([]messaging_api.MessageInterface, error) {
			option, ok := s.Quiz.Pending.Option(n)
			if !ok {
				return p.text(quizExpiredMessage), nil
			}
			if msgs, ok := p.checkLLMRateLimit(chatID); !ok {
				return msgs, nil
			}
			return p.answer(ctx, s, option)
		})
	}

	p.logger.WithField("postback", data).Debug("Unhandled postback")
	return nil, nil
}

func (p *Processor) answer(ctx context.Context, s *conversation.Session, option string) ([]messaging_api.MessageInterface, error) {
	resp, err := p.engine.AnswerPending(ctx, s, option)
	if errors.Is(err, apperrors.ErrNoPendingQuiz) {
		return p.text(quizExpiredMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("answer quiz: %w", err)
	}
	return p.textChunks(resp, nil), nil
}

func (p *Processor) startNewConversation(ctx context.Context, chatID string) ([]messaging_api.MessageInterface, error) {
	return p.withSession(ctx, chatID, func(s *conversation.Session) ([]messaging_api.MessageInterface, error) {
		if err := p.engine.NewConversation(ctx, s); err != nil {
			p.logger.WithError(err).ErrorContext(ctx, "Failed to start new conversation")
			return p.text(newConversationFailed), nil
		}
		return p.text(newConversationDone), nil
	})
}

// withSession runs fn on chatID's session under its lock and saves the
// session afterwards. Unknown chats start with an empty session.
func (p *Processor) withSession(ctx context.Context, chatID string, fn func(*conversation.Session) ([]messaging_api.MessageInterface, error)) ([]messaging_api.MessageInterface, error) {
	id := SessionID(chatID)
	ctx = ctxutil.WithSessionID(ctx, id)
	unlock := p.locks.Lock(id)
	defer unlock()

	s, err := p.sessions.Get(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s = conversation.NewSession(id, p.now())
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	msgs, err := fn(s)
	if err != nil {
		return nil, err
	}
	// Persist even if the turn ran out of time so the transcript isn't lost.
	if err := p.sessions.Save(context.WithoutCancel(ctx), s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return msgs, nil
}

// replyMessages renders an engine reply. A quiz gets one quick reply
// button per option on the last message.
func (p *Processor) replyMessages(reply conversation.Reply) []messaging_api.MessageInterface {
	if reply.Question == "" || len(reply.Options) == 0 {
		return p.textChunks(reply.Response, nil)
	}
	items := make([]lineutil.QuickReplyItem, len(reply.Options))
	for i, opt := range reply.Options {
		items[i] = lineutil.QuickReplyItem{
			Action: lineutil.NewPostbackAction(opt, opt, quizAnswerData(i+1)),
		}
	}
	return p.textChunks(reply.Response, items)
}

func (p *Processor) textChunks(text string, items []lineutil.QuickReplyItem) []messaging_api.MessageInterface {
	chunks := lineutil.SplitText(lineutil.PlainText(text), lineutil.MaxTextMessageLength)
	msgs := make([]messaging_api.MessageInterface, 0, len(chunks))
	for i, c := range chunks {
		if i == len(chunks)-1 {
			msgs = append(msgs, lineutil.NewTextMessageWithQuickReply(c, p.sender, items...))
			continue
		}
		msgs = append(msgs, lineutil.NewTextMessageWithQuickReply(c, p.sender))
	}
	return lineutil.LimitMessages(msgs)
}

func (p *Processor) text(s string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessageWithQuickReply(s, p.sender)}
}

func (p *Processor) helpMessages(s string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(s, p.sender,
			lineutil.QuickReplyItem{Action: lineutil.NewPostbackAction(newConversationLabel, newConversationLabel,
				PostbackData{Module: moduleConversation, Action: actionNew}.String())},
			lineutil.QuickReplyItem{Action: lineutil.NewMessageAction(helpLabel, helpLabel)},
		),
	}
}

// checkUserRateLimit checks if the chat has exceeded its message rate.
func (p *Processor) checkUserRateLimit(chatID string) ([]messaging_api.MessageInterface, bool) {
	if p.userLimiter == nil || p.userLimiter.Allow(chatID) {
		return nil, true
	}
	p.logger.WithField("chat_id", logChatID(chatID)).Warn("User rate limit exceeded")
	return p.text(userRateLimitMessage), false
}

// checkLLMRateLimit checks the chat's generation budget.
func (p *Processor) checkLLMRateLimit(chatID string) ([]messaging_api.MessageInterface, bool) {
	if p.llmLimiter == nil || p.llmLimiter.Allow(chatID) {
		return nil, true
	}
	p.logger.WithField("chat_id", logChatID(chatID)).Warn("LLM rate limit exceeded")

	if p.llmLimiter.DailyRemaining(chatID) == 0 {
		return p.text(llmDailyLimitMessage), false
	}
	minutes := 1
	if p.llmRefillPerHour > 0 {
		missing := 1 - p.llmLimiter.Available(chatID)
		minutes = max(1, int(math.Ceil(missing*60/p.llmRefillPerHour)))
	}
	return p.text(fmt.Sprintf(llmRateLimitMessage, minutes)), false
}

// logChatID shortens a chat id for logs.
func logChatID(chatID string) string {
	if len(chatID) > 8 {
		return chatID[:8] + "..."
	}
	return chatID
}
