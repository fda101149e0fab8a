// Package webhook receives LINE webhook calls, acknowledges them at once and
// processes their events in the background.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/tamly-chatbot-go/internal/bot"
	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/ctxutil"
	"github.com/garyellow/tamly-chatbot-go/internal/lineutil"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
	"github.com/garyellow/tamly-chatbot-go/internal/sentry"
)

// EventProcessor turns events into reply messages. *bot.Processor
// implements it.
type EventProcessor interface {
	ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error)
	ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error)
	ProcessFollow(event webhook.FollowEvent) ([]messaging_api.MessageInterface, error)
}

var _ EventProcessor = (*bot.Processor)(nil)

const (
	// loadingSeconds matches the turn timeout; LINE caps it at 60.
	loadingSeconds = 60

	// replyRatePerSec stays well under the Messaging API's per-channel limit.
	replyRatePerSec = 100

	// Reply tokens shorter than this are test tokens from the LINE console.
	minReplyTokenLength = 10
)

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	messenger     Messenger
	processor     EventProcessor
	metrics       *metrics.Metrics
	logger        *logger.Logger
	replyLimiter  *ratelimit.Bucket
	wg            sync.WaitGroup

	maxEventsPerWebhook int
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	Messenger     Messenger
	Processor     EventProcessor
	BotConfig     *config.BotConfig
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("channel secret is required")
	}
	if cfg.Messenger == nil || cfg.Processor == nil {
		return nil, errors.New("messenger and processor are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("info")
	}
	maxEvents := 100
	if cfg.BotConfig != nil && cfg.BotConfig.MaxEventsPerWebhook > 0 {
		maxEvents = cfg.BotConfig.MaxEventsPerWebhook
	}
	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		messenger:           cfg.Messenger,
		processor:           cfg.Processor,
		metrics:             cfg.Metrics,
		logger:              log.WithModule("webhook"),
		replyLimiter:        ratelimit.NewBucket(replyRatePerSec, replyRatePerSec),
		maxEventsPerWebhook: maxEvents,
	}, nil
}

// Handle is the Gin handler for the webhook endpoint. It verifies the
// signature, answers 200 right away and processes the events afterwards.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			h.metrics.RecordWebhook("batch", "invalid_signature", 0)
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			h.metrics.RecordWebhook("batch", "parse_error", 0)
			c.Status(http.StatusBadRequest)
		}
		return
	}

	c.Status(http.StatusOK)

	start := time.Now()
	h.metrics.RecordWebhook("batch", "received", 0)

	if len(cb.Events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(cb.Events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}

	// Copy events; the request is done once we return.
	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)
	baseCtx := ctxutil.PreserveTracing(c.Request.Context())

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
				sentry.CapturePanic(baseCtx, r)
			}
		}()
		for _, event := range events {
			h.processEvent(baseCtx, event, start)
		}
	})
}

// processEvent handles a single webhook event.
func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface, batchStart time.Time) {
	eventStart := time.Now()
	meta := extractEventMeta(event)
	if meta.eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, meta.eventID)
	}

	log := h.logger
	if meta.eventID != "" {
		log = log.WithRequestID(meta.eventID)
	}
	if meta.redelivery {
		log = log.WithField("is_redelivery", true)
	}

	if meta.chatID != "" && meta.personal {
		if err := h.messenger.ShowLoading(ctx, meta.chatID, loadingSeconds); err != nil {
			log.WithError(err).Warn("Failed to show loading animation")
		}
	}

	var (
		messages  []messaging_api.MessageInterface
		eventType string
		err       error
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		messages, err = h.processor.ProcessMessage(ctx, e)
	case webhook.PostbackEvent:
		eventType = "postback"
		messages, err = h.processor.ProcessPostback(ctx, e)
	case webhook.FollowEvent:
		eventType = "follow"
		messages, err = h.processor.ProcessFollow(e)
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).WithField("event_type", eventType).ErrorContext(ctx, "Failed to handle event")
		sentry.CaptureError(ctx, err)
		if meta.personal {
			messages = []messaging_api.MessageInterface{lineutil.NewTextMessage(errorMessage)}
		}
	}
	h.metrics.RecordWebhook(eventType, status, time.Since(eventStart).Seconds())

	if len(messages) > 0 {
		h.reply(ctx, log, meta.replyToken, eventType, lineutil.LimitMessages(messages))
	}

	log.WithField("event_type", eventType).
		WithField("event_duration_ms", time.Since(eventStart).Milliseconds()).
		WithField("batch_duration_ms", time.Since(batchStart).Milliseconds()).
		Info("Event processed")
}

// errorMessage is sent when a turn fails outside the composer's own
// fallbacks, e.g. the session store is down.
const errorMessage = "Xin lỗi, mình đang gặp trục trặc nên chưa trả lời được. Bạn thử lại sau ít phút nhé."

func (h *Handler) reply(ctx context.Context, log *logger.Logger, replyToken, eventType string, messages []messaging_api.MessageInterface) {
	if len(replyToken) < minReplyTokenLength {
		log.WithField("token_length", len(replyToken)).Debug("Skipping reply: no usable reply token")
		return
	}

	for !h.replyLimiter.Allow() {
		h.metrics.RecordRateLimiterDrop("reply")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second / replyRatePerSec):
		}
	}

	if err := h.messenger.Reply(ctx, replyToken, messages); err != nil {
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "Invalid reply token"):
			log.WithError(err).Debug("Reply token already used or expired")
		default:
			log.WithError(err).WithField("reply_token", replyToken[:8]+"...").Error("Failed to send reply")
		}
		h.metrics.RecordWebhook(eventType, "reply_error", 0)
	}
}

type eventMeta struct {
	eventID    string
	replyToken string
	chatID     string
	personal   bool
	redelivery bool
}

func extractEventMeta(event webhook.EventInterface) eventMeta {
	var (
		m      eventMeta
		source webhook.SourceInterface
		dc     *webhook.DeliveryContext
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		m.eventID, m.replyToken, source, dc = e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext
	case webhook.PostbackEvent:
		m.eventID, m.replyToken, source, dc = e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext
	case webhook.FollowEvent:
		m.eventID, m.replyToken, source, dc = e.WebhookEventId, e.ReplyToken, e.Source, e.DeliveryContext
	default:
		return m
	}
	m.chatID = bot.GetChatID(source)
	m.personal = bot.IsPersonalChat(source)
	m.redelivery = dc != nil && dc.IsRedelivery
	return m
}

// Shutdown waits for in-flight events. It returns ctx's error if they do
// not finish in time.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
