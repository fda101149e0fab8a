// Package api serves the chat over JSON and a websocket. It is the
// surface for web clients; LINE users go through the webhook package.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
	"github.com/garyellow/tamly-chatbot-go/internal/sentry"
)

// Archive lists and searches saved conversations.
type Archive interface {
	List() []history.Conversation
	Search(query string) []history.Conversation
}

// Config holds the server's collaborators.
type Config struct {
	Engine   *conversation.Engine
	Sessions conversation.SessionStore
	Locks    *conversation.Locks // shared with the LINE processor; optional
	Archive  Archive

	// Limiter throttles turns per client IP; nil disables it.
	Limiter *ratelimit.Keyed

	// TurnTimeout bounds one input or answer; 0 uses config.APITurn.
	TurnTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Server implements the /api routes.
type Server struct {
	engine      *conversation.Engine
	sessions    conversation.SessionStore
	locks       *conversation.Locks
	archive     Archive
	limiter     *ratelimit.Keyed
	turnTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger
	newID       func() string
	now         func() time.Time
}

// New validates cfg and creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Sessions == nil || cfg.Archive == nil {
		return nil, errors.New("api: engine, sessions and archive are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	locks := cfg.Locks
	if locks == nil {
		locks = conversation.NewLocks()
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = config.APITurn
	}
	return &Server{
		engine:      cfg.Engine,
		sessions:    cfg.Sessions,
		locks:       locks,
		archive:     cfg.Archive,
		limiter:     cfg.Limiter,
		turnTimeout: timeout,
		metrics:     cfg.Metrics,
		logger:      log.WithModule("api"),
		newID:       uuid.NewString,
		now:         time.Now,
	}, nil
}

// Register mounts the routes under r.
func (s *Server) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.Use(s.metricsMiddleware())

	g.POST("/sessions", s.createSession)
	g.GET("/sessions/:id", s.getSession)
	g.POST("/sessions/:id/input", s.rateLimit(), s.input)
	g.POST("/sessions/:id/answer", s.rateLimit(), s.answer)
	g.POST("/sessions/:id/new", s.newConversation)
	g.POST("/sessions/:id/open", s.openConversation)
	g.GET("/sessions/:id/ws", s.websocket)

	g.GET("/conversations", s.listConversations)
	g.GET("/conversations/search", s.searchConversations)
}

// update runs fn on session id under its lock and saves the result. It
// fails with errors.ErrNotFound for unknown ids.
func (s *Server) update(ctx context.Context, id string, fn func(*conversation.Session) error) (*conversation.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// errorBody is the JSON error shape.
type errorBody struct {
	Error string `json:"error"`
}

// respondError maps domain errors to HTTP statuses. Unexpected errors are
// logged and reported; their text is not shown to the client.
func (s *Server) respondError(c *gin.Context, err error) {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, errorBody{Error: ve.Message})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, apperrors.ErrNoPendingQuiz):
		c.JSON(http.StatusConflict, errorBody{Error: "no pending quiz"})
	case apperrors.IsRateLimitExceeded(err):
		c.JSON(http.StatusTooManyRequests, errorBody{Error: "too many requests"})
	default:
		s.logger.WithError(err).ErrorContext(c.Request.Context(), "API request failed")
		sentry.CaptureError(c.Request.Context(), err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// rateLimit throttles by client IP.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "5")
			s.respondError(c, apperrors.ErrRateLimitExceeded)
			c.Abort()
			return
		}
		c.Next()
	}
}

// metricsMiddleware records request latency by route template.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
