package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/composer"
	"github.com/garyellow/tamly-chatbot-go/internal/ctxutil"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Archive stores finished conversations by name.
type Archive interface {
	SaveConversation(name string, messages []history.Message) error
	Get(name string) (history.Conversation, bool)
}

// Reply is the result of an input turn. Question and Options are set only
// when the turn issued a quiz.
type Reply struct {
	Response string   `json:"response"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Config holds the engine's collaborators.
type Config struct {
	Classifier *keyword.Classifier
	Composer   *composer.Composer

	// Archive is optional; without it NewConversation only resets.
	Archive Archive

	Metrics *metrics.Metrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Engine routes utterances and maintains session state. Keyword sets and the
// composer are shared read-only; all mutable state lives in the Session
// passed to each call.
type Engine struct {
	classifier *keyword.Classifier
	composer   *composer.Composer
	archive    Archive
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine validates cfg and builds an engine. The returned error carries a
// user-facing message (see errors.GetUserMessage).
func NewEngine(cfg Config) (*Engine, error) {
	wrap := apperrors.NewWrapper("conversation", "new_engine")
	if cfg.Classifier == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Không thể khởi tạo bộ phân loại từ khóa")
	}
	if cfg.Composer == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Không thể khởi tạo bộ soạn câu trả lời")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		classifier: cfg.Classifier,
		composer:   cfg.Composer,
		archive:    cfg.Archive,
		metrics:    cfg.Metrics,
		log:        log.WithModule("conversation"),
		now:        now,
	}, nil
}

// ProcessInput handles one free-text utterance. It never fails: every
// outcome, including collaborator errors, is rendered as reply text.
func (e *Engine) ProcessInput(ctx context.Context, s *Session, text string) Reply {
	ctx = ctxutil.WithSessionID(ctx, s.ID)
	now := e.now()
	s.append(history.NewMessage(history.RoleUser, text, now))

	reply := e.route(ctx, s, text)

	msg := history.NewMessage(history.RoleAssistant, reply.Response, e.now())
	msg.Question = reply.Question
	msg.Options = append([]string(nil), reply.Options...)
	s.append(msg)
	s.UpdatedAt = e.now()
	return reply
}

func (e *Engine) route(ctx context.Context, s *Session, text string) Reply {
	if textnorm.IsBlank(text) {
		e.metrics.RecordClassification("empty")
		return Reply{Response: composer.EmptyInputMessage}
	}

	intent := e.classifier.Classify(text)
	e.metrics.RecordClassification(intent.String())
	e.log.WithField("intent", intent.String()).DebugContext(ctx, "Classified utterance")

	switch intent {
	case keyword.DirectQuery:
		r := e.composer.AnswerDirectQuery(ctx, text)
		return Reply{Response: r.Response}

	case keyword.EmotionalDisclosure:
		tag := e.composer.Detector().Detect(text)
		s.LastEmotion = tag
		e.metrics.RecordEmotion(string(tag))

		r, q, ok := e.composer.GenerateQuiz(ctx, text)
		if !ok {
			e.metrics.RecordQuizTransition("generation_failed")
			return Reply{Response: r.Response}
		}
		if s.Quiz.State() == quiz.Pending {
			e.metrics.RecordQuizTransition("replaced")
		}
		s.Quiz.Issue(q)
		e.metrics.RecordQuizTransition("issued")
		return Reply{Response: r.Response, Question: r.Question, Options: r.Options}
	}

	return Reply{Response: composer.UnclearMessage}
}

// ProcessAnswer composes the reply to a quiz answer. Any pending quiz is
// consumed first, whatever happens next. text is the utterance that led to
// the question.
func (e *Engine) ProcessAnswer(ctx context.Context, s *Session, text, question, answer string) string {
	ctx = ctxutil.WithSessionID(ctx, s.ID)
	if _, err := s.Quiz.Consume(); err == nil {
		e.metrics.RecordQuizTransition("answered")
	}
	return e.answer(ctx, s, text, question, answer)
}

// AnswerPending answers the session's pending quiz. answer may be the option
// text, its label or its rank. It fails with errors.ErrNoPendingQuiz when no
// quiz is outstanding and with errors.ErrInvalidInput when answer matches no
// option; the quiz stays pending in that case.
func (e *Engine) AnswerPending(ctx context.Context, s *Session, answer string) (string, error) {
	ctx = ctxutil.WithSessionID(ctx, s.ID)
	pending := s.Quiz.Pending
	if pending == nil {
		return "", apperrors.ErrNoPendingQuiz
	}
	option, ok := pending.Resolve(answer)
	if !ok {
		return "", apperrors.NewValidationError("answer", fmt.Sprintf("không khớp lựa chọn nào: %q", answer))
	}

	q, err := s.Quiz.Consume()
	if err != nil {
		return "", err
	}
	e.metrics.RecordQuizTransition("answered")
	return e.answer(ctx, s, q.SourceUtterance, q.Question, option), nil
}

func (e *Engine) answer(ctx context.Context, s *Session, text, question, answer string) string {
	s.append(history.NewMessage(history.RoleUser, answer, e.now()))
	response := e.composer.ProcessAnswer(ctx, text, question, answer)
	s.append(history.NewMessage(history.RoleAssistant, response, e.now()))
	s.UpdatedAt = e.now()
	return response
}

// NewConversation archives the current transcript under the session's name
// and resets the session.
func (e *Engine) NewConversation(ctx context.Context, s *Session) error {
	if err := e.save(ctx, s); err != nil {
		return err
	}
	if s.Quiz.State() == quiz.Pending {
		e.metrics.RecordQuizTransition("reset")
	}
	s.reset(e.now())
	return nil
}

// OpenConversation archives the current transcript and replaces it with the
// saved conversation called name. Any pending quiz is dropped.
func (e *Engine) OpenConversation(ctx context.Context, s *Session, name string) error {
	if e.archive == nil {
		return apperrors.ErrNotFound
	}
	conv, ok := e.archive.Get(strings.TrimSpace(name))
	if !ok {
		return fmt.Errorf("conversation %q: %w", name, apperrors.ErrNotFound)
	}
	if conv.Name != s.Name {
		if err := e.save(ctx, s); err != nil {
			return err
		}
	}
	if s.Quiz.State() == quiz.Pending {
		e.metrics.RecordQuizTransition("reset")
	}
	s.reset(e.now())
	s.Name = conv.Name
	s.Transcript = conv.Messages
	return nil
}

func (e *Engine) save(ctx context.Context, s *Session) error {
	if e.archive == nil || len(s.Transcript) == 0 {
		return nil
	}
	if err := e.archive.SaveConversation(s.Name, s.Transcript); err != nil {
		e.log.WithError(err).ErrorContext(ctx, "Failed to archive conversation")
		return fmt.Errorf("archive conversation: %w", err)
	}
	return nil
}
