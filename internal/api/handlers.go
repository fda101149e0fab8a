package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
)

type inputRequest struct {
	Text string `json:"text"`
}

type answerRequest struct {
	// Text overrides the utterance the quiz was generated from.
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

type answerResponse struct {
	Response string `json:"response"`
}

type openRequest struct {
	Name string `json:"name"`
}

type quizView struct {
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	IssuedAt time.Time `json:"issued_at"`
}

type sessionView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Transcript  []history.Message `json:"transcript"`
	PendingQuiz *quizView         `json:"pending_quiz,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func viewOf(s *conversation.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		Name:       s.Name,
		Transcript: s.Transcript,
		UpdatedAt:  s.UpdatedAt,
	}
	if v.Transcript == nil {
		v.Transcript = []history.Message{}
	}
	if q := s.Quiz.Pending; q != nil {
		v.PendingQuiz = &quizView{Question: q.Question, Options: q.Options, IssuedAt: q.IssuedAt}
	}
	return v
}

type conversationSummary struct {
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
	LastTime     string `json:"last_time,omitempty"`
}

func summarize(convs []history.Conversation) []conversationSummary {
	out := make([]conversationSummary, len(convs))
	for i, c := range convs {
		out[i] = conversationSummary{Name: c.Name, MessageCount: len(c.Messages)}
		if n := len(c.Messages); n > 0 {
			out[i].LastTime = c.Messages[n-1].Time
		}
	}
	return out
}

func (s *Server) createSession(c *gin.Context) {
	sess := conversation.NewSession(s.newID(), s.now())
	if err := s.sessions.Save(c.Request.Context(), sess); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) input(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("body", "invalid JSON"))
		return
	}
	reply, err := s.processInput(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) processInput(ctx context.Context, id, text string) (conversation.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	var reply conversation.Reply
	_, err := s.update(ctx, id, func(sess *conversation.Session) error {
		reply = s.engine.ProcessInput(ctx, sess, text)
		return nil
	})
	return reply, err
}

func (s *Server) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("body", "invalid JSON"))
		return
	}
	resp, err := s.processAnswer(c.Request.Context(), c.Param("id"), req.Text, req.Answer)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answerResponse{Response: resp})
}

// processAnswer answers the session's pending quiz. When text is given it
// replaces the utterance the quiz was generated from.
func (s *Server) processAnswer(ctx context.Context, id, text, answer string) (string, error) {
	if strings.TrimSpace(answer) == "" {
		return "", apperrors.NewValidationError("answer", "answer is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	var resp string
	_, err := s.update(ctx, id, func(sess *conversation.Session) error {
		pending := sess.Quiz.Pending
		if pending == nil {
			return apperrors.ErrNoPendingQuiz
		}
		if strings.TrimSpace(text) == "" {
			r, err := s.engine.AnswerPending(ctx, sess, answer)
			resp = r
			return err
		}
		option, ok := pending.Resolve(answer)
		if !ok {
			return apperrors.NewValidationError("answer", "answer matches no option")
		}
		resp = s.engine.ProcessAnswer(ctx, sess, text, pending.Question, option)
		return nil
	})
	return resp, err
}

func (s *Server) newConversation(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := s.update(ctx, c.Param("id"), func(sess *conversation.Session) error {
		return s.engine.NewConversation(ctx, sess)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) openConversation(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.respondError(c, apperrors.NewValidationError("name", "name is required"))
		return
	}
	ctx := c.Request.Context()
	sess, err := s.update(ctx, c.Param("id"), func(sess *conversation.Session) error {
		return s.engine.OpenConversation(ctx, sess, req.Name)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) listConversations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversations": summarize(s.archive.List())})
}

func (s *Server) searchConversations(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		s.respondError(c, apperrors.NewValidationError("q", "query is required"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summarize(s.archive.Search(q))})
}
