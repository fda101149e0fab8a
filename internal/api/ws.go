package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 10 * time.Minute
)

// Frame types.
const (
	frameInput  = "input"
	frameAnswer = "answer"
	frameReply  = "reply"
	frameError  = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsRequest is a client frame.
type wsRequest struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Answer string `json:"answer,omitempty"`
}

// wsResponse answers one client frame.
type wsResponse struct {
	Type     string   `json:"type"`
	Response string   `json:"response,omitempty"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
	Error    string   `json:"error,omitempty"`
	Status   int      `json:"status,omitempty"`
}

// websocket carries input and answer turns for one session over a single
// connection. Frames are handled in order.
func (s *Server) websocket(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.sessions.Get(ctx, id); err != nil {
		s.respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	log := s.logger.WithField("session_id", id)
	log.Debug("Websocket connected")
	defer log.Debug("Websocket closed")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Websocket read ended")
			}
			return
		}

		resp := s.handleFrame(c, id, req)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Debug("Websocket write failed")
			return
		}
	}
}

func (s *Server) handleFrame(c *gin.Context, id string, req wsRequest) wsResponse {
	ctx := c.Request.Context()
	if s.limiter != nil && !s.limiter.Allow(c.ClientIP()) {
		return frameErr(apperrors.ErrRateLimitExceeded)
	}

	switch req.Type {
	case frameInput:
		reply, err := s.processInput(ctx, id, req.Text)
		if err != nil {
			return s.frameFailure(c, err)
		}
		return wsResponse{Type: frameReply, Response: reply.Response, Question: reply.Question, Options: reply.Options}
	case frameAnswer:
		resp, err := s.processAnswer(ctx, id, req.Text, req.Answer)
		if err != nil {
			return s.frameFailure(c, err)
		}
		return wsResponse{Type: frameReply, Response: resp}
	}
	return wsResponse{Type: frameError, Error: "unknown frame type", Status: http.StatusBadRequest}
}

// frameFailure renders an error frame with the status the JSON API would use.
func (s *Server) frameFailure(c *gin.Context, err error) wsResponse {
	resp := frameErr(err)
	if resp.Status == http.StatusInternalServerError {
		s.logger.WithError(err).ErrorContext(c.Request.Context(), "Websocket turn failed")
	}
	return resp
}

func frameErr(err error) wsResponse {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		return wsResponse{Type: frameError, Error: ve.Message, Status: http.StatusBadRequest}
	case apperrors.IsNotFound(err):
		return wsResponse{Type: frameError, Error: "not found", Status: http.StatusNotFound}
	case errors.Is(err, apperrors.ErrNoPendingQuiz):
		return wsResponse{Type: frameError, Error: "no pending quiz", Status: http.StatusConflict}
	case apperrors.IsRateLimitExceeded(err):
		return wsResponse{Type: frameError, Error: "too many requests", Status: http.StatusTooManyRequests}
	}
	return wsResponse{Type: frameError, Error: "internal error", Status: http.StatusInternalServerError}
}
