// Package composer turns routed utterances into user-facing replies: direct
// answers from the retrieval collaborator, severity quizzes, and tailored
// responses to quiz answers. It never returns collaborator errors to callers;
// every failure renders as fallback text.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Branch names used in logs and metrics.
const (
	BranchDirect = "direct_query"
	BranchQuiz   = "quiz"
	BranchAnswer = "answer"
)

// Reply is the outcome of one composed turn. Question and Options are set
// only when a quiz was issued.
type Reply struct {
	Response string
	Question string
	Options  []string
}

// Options configures a Composer.
type Options struct {
	// LabeledOptions selects "1 - Không bao giờ" over "Không bao giờ".
	LabeledOptions bool

	// Topics is the emotion keyword list used to pick a quiz topic.
	Topics keyword.Set

	Metrics *metrics.Metrics
	Logger  *logger.Logger

	// OnCollaboratorError is called for every collaborator failure,
	// e.g. to forward it to error tracking.
	OnCollaboratorError func(ctx context.Context, err error)

	// Now overrides the clock for quiz timestamps.
	Now func() time.Time
}

// Composer builds replies. It is safe for concurrent use.
type Composer struct {
	collab   Collaborator
	detector *emotion.Detector
	opts     Options
	log      *logger.Logger
}

// New creates a composer. The collaborator and detector are required.
func New(collab Collaborator, detector *emotion.Detector, opts Options) (*Composer, error) {
	wrap := apperrors.NewWrapper("composer", "new")
	if collab == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Thiếu thành phần truy xuất tài liệu")
	}
	if detector == nil {
		return nil, wrap.Wrap(apperrors.ErrInitialization, "Thiếu bộ nhận diện cảm xúc")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("info")
	}
	return &Composer{
		collab:   collab,
		detector: detector,
		opts:     opts,
		log:      log.WithModule("composer"),
	}, nil
}

// Detector returns the emotion detector used for greetings.
func (c *Composer) Detector() *emotion.Detector { return c.detector }

// call invokes the collaborator and tags the outcome.
func (c *Composer) call(ctx context.Context, branch, query string) Result {
	text, err := c.collab.RetrieveAndGenerate(ctx, query)
	if err != nil {
		err = apperrors.NewCollaboratorError(branch, err)
		c.log.WithError(err).WithField("branch", branch).ErrorContext(ctx, "Collaborator call failed")
		if c.opts.OnCollaboratorError != nil {
			c.opts.OnCollaboratorError(ctx, err)
		}
		return Failure(err)
	}
	return Success(StripArtifacts(text))
}

// AnswerDirectQuery forwards utterance to the collaborator and returns the
// cleaned answer with the disclaimer. A failure becomes an apology that
// carries the error text.
func (c *Composer) AnswerDirectQuery(ctx context.Context, utterance string) Reply {
	res := c.call(ctx, BranchDirect, utterance)
	text, ok := res.Text()
	if !ok {
		c.opts.Metrics.RecordComposerFallback(BranchDirect, "collaborator_error")
		return Reply{Response: withDisclaimer(
			fmt.Sprintf("Xin lỗi, tôi chưa thể trả lời câu hỏi của bạn lúc này. Lỗi: %s", userFacing(res.Err())),
		)}
	}
	if strings.TrimSpace(text) == "" {
		c.opts.Metrics.RecordComposerFallback(BranchDirect, "empty")
		text = "Xin lỗi, tôi chưa tìm thấy thông tin phù hợp trong tài liệu. Bạn có thể diễn đạt câu hỏi theo cách khác không?"
	}
	return Reply{Response: withDisclaimer(text)}
}

// Topic returns the quiz topic for utterance: the longest emotion keyword it
// contains, or the detected emotion's label.
func (c *Composer) Topic(utterance string) string {
	if kw, ok := c.opts.Topics.Longest(textnorm.Fold(utterance)); ok {
		return kw
	}
	return c.detector.Detect(utterance).Label()
}

// GenerateQuiz asks the collaborator for a severity question about the
// utterance's topic. ok is false when the collaborator failed; the returned
// reply is then a plain supportive message and no quiz must be issued.
// Unusable generated text is replaced with a fallback question.
func (c *Composer) GenerateQuiz(ctx context.Context, utterance string) (reply Reply, q *quiz.Quiz, ok bool) {
	tag := c.detector.Detect(utterance)
	topic := c.Topic(utterance)
	greeting := c.detector.Greeting(tag)

	res := c.call(ctx, BranchQuiz, quizQuery(topic, utterance))
	text, ok := res.Text()
	if !ok {
		c.opts.Metrics.RecordComposerFallback(BranchQuiz, "collaborator_error")
		return Reply{Response: withDisclaimer(
			greeting,
			"Tôi rất muốn hiểu thêm về cảm giác của bạn. Bạn có thể kể cho tôi nghe điều gì đã khiến bạn cảm thấy như vậy không?",
		)}, nil, false
	}

	question := cleanQuestion(text)
	if err := checkQuestion(question, topic); err != nil {
		c.opts.Metrics.RecordComposerFallback(BranchQuiz, "malformed")
		c.log.WithError(err).WithField("generated", question).DebugContext(ctx, "Generated question rejected")
		question = FallbackQuestion(topic)
	}

	options := quiz.Options(c.opts.LabeledOptions)
	q = &quiz.Quiz{
		Question:        question,
		Options:         options,
		SourceUtterance: utterance,
		IssuedAt:        c.opts.Now(),
	}
	response := greeting + "\n\nĐể hiểu rõ hơn, bạn hãy chọn mức độ phù hợp nhất cho câu hỏi sau nhé:\n\n**Câu hỏi**: " + question
	return Reply{Response: response, Question: question, Options: append([]string(nil), options...)}, q, true
}

// ProcessAnswer composes the reply to a quiz answer. The emotion comes from
// the original utterance, not the answer. Positive emotions get guidance on
// sustaining the state; others get criteria-based guidance at the answer's
// severity. Weak or failed generations use a template for the same branch.
func (c *Composer) ProcessAnswer(ctx context.Context, utterance, question, answer string) string {
	tag := c.detector.Detect(utterance)
	sev := quiz.ParseSeverity(answer)

	positive := emotion.IsPositive(string(tag))
	var query string
	if positive {
		query = maintenanceQuery(tag, question, answer)
	} else {
		query = criteriaQuery(tag, question, answer, sev)
	}

	res := c.call(ctx, BranchAnswer, query)
	body, ok := res.Text()
	reason := "collaborator_error"
	if ok {
		reason = weakAnswer(body)
	}
	if reason != "" {
		c.opts.Metrics.RecordComposerFallback(BranchAnswer, reason)
		if positive {
			body = maintenanceAnswer(tag, question, answer)
		} else {
			body = fallbackAnswer(tag, question, answer, sev)
		}
	}

	return withDisclaimer(c.detector.Greeting(tag), body)
}

// userFacing extracts a short error description for embedding in replies.
func userFacing(err error) string {
	var ce *apperrors.CollaboratorError
	if errors.As(err, &ce) {
		err = ce.Err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "hết thời gian chờ phản hồi"
	case errors.Is(err, context.Canceled):
		return "yêu cầu đã bị hủy"
	}
	return apperrors.GetUserMessage(err)
}
