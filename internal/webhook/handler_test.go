package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/tamly-chatbot-go/internal/lineutil"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
)

const testSecret = "channel-secret"

type sentReply struct {
	token    string
	messages []messaging_api.MessageInterface
}

// fakeMessenger records what would be sent to LINE.
type fakeMessenger struct {
	mu      sync.Mutex
	replies []sentReply
	loading []string
	err     error
}

func (f *fakeMessenger) Reply(_ context.Context, token string, msgs []messaging_api.MessageInterface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{token: token, messages: msgs})
	return f.err
}

func (f *fakeMessenger) ShowLoading(_ context.Context, chatID string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = append(f.loading, chatID)
	return nil
}

// fakeProcessor answers text events with an echo.
type fakeProcessor struct {
	err   error
	panic bool
}

func (f *fakeProcessor) ProcessMessage(_ context.Context, e webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	text := e.Message.(webhook.TextMessageContent).Text
	return []messaging_api.MessageInterface{lineutil.NewTextMessage("echo: " + text)}, nil
}

func (f *fakeProcessor) ProcessPostback(_ context.Context, e webhook.PostbackEvent) ([]messaging_api.MessageInterface, error) {
	return []messaging_api.MessageInterface{lineutil.NewTextMessage("postback: " + e.Postback.Data)}, nil
}

func (f *fakeProcessor) ProcessFollow(webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	return []messaging_api.MessageInterface{lineutil.NewTextMessage("welcome")}, nil
}

func newTestHandler(t *testing.T, proc EventProcessor, m *metrics.Metrics) (*Handler, *fakeMessenger) {
	t.Helper()
	messenger := &fakeMessenger{}
	h, err := NewHandler(HandlerConfig{
		ChannelSecret: testSecret,
		Messenger:     messenger,
		Processor:     proc,
		Metrics:       m,
		Logger:        logger.NewWithWriter("error", io.Discard),
	})
	require.NoError(t, err)
	return h, messenger
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func post(t *testing.T, h *Handler, body, signature string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	return w.Code
}

const textEventBody = `{"destination":"Ubot","events":[{
	"type":"message","mode":"active","timestamp":1730642709000,
	"webhookEventId":"01JBTESTEVENT","deliveryContext":{"isRedelivery":false},
	"replyToken":"0123456789abcdef",
	"source":{"type":"user","userId":"U1234567890"},
	"message":{"type":"text","id":"1","quoteToken":"q","text":"tôi thấy buồn"}}]}`

func TestNewHandler_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewHandler(HandlerConfig{Messenger: &fakeMessenger{}, Processor: &fakeProcessor{}})
	assert.Error(t, err)
	_, err = NewHandler(HandlerConfig{ChannelSecret: testSecret})
	assert.Error(t, err)
}

func TestHandle_InvalidSignature(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	h, messenger := newTestHandler(t, &fakeProcessor{}, m)

	assert.Equal(t, http.StatusBadRequest, post(t, h, textEventBody, "bm90LXRoZS1zaWduYXR1cmU="))
	assert.Empty(t, messenger.replies)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WebhookRequestsTotal.WithLabelValues("batch", "invalid_signature")))
}

func TestHandle_TextMessage(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	h, messenger := newTestHandler(t, &fakeProcessor{}, m)

	assert.Equal(t, http.StatusOK, post(t, h, textEventBody, sign(textEventBody)))

	require.Len(t, messenger.replies, 1)
	assert.Equal(t, "0123456789abcdef", messenger.replies[0].token)
	msg := messenger.replies[0].messages[0].(*messaging_api.TextMessage)
	assert.Equal(t, "echo: tôi thấy buồn", msg.Text)
	assert.Equal(t, []string{"U1234567890"}, messenger.loading)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WebhookRequestsTotal.WithLabelValues("message", "success")))
}

func TestHandle_PostbackAndFollow(t *testing.T) {
	t.Parallel()
	h, messenger := newTestHandler(t, &fakeProcessor{}, nil)
	body := `{"destination":"Ubot","events":[
		{"type":"postback","mode":"active","timestamp":1,"webhookEventId":"e1",
		 "deliveryContext":{"isRedelivery":false},"replyToken":"postback-token-1",
		 "source":{"type":"user","userId":"U1"},"postback":{"data":"quiz:answer$2"}},
		{"type":"follow","mode":"active","timestamp":2,"webhookEventId":"e2",
		 "deliveryContext":{"isRedelivery":false},"replyToken":"follow-token-12",
		 "source":{"type":"user","userId":"U2"},"follow":{"isUnblocked":false}}]}`

	assert.Equal(t, http.StatusOK, post(t, h, body, sign(body)))
	require.Len(t, messenger.replies, 2)
	assert.Equal(t, "postback: quiz:answer$2", messenger.replies[0].messages[0].(*messaging_api.TextMessage).Text)
	assert.Equal(t, "welcome", messenger.replies[1].messages[0].(*messaging_api.TextMessage).Text)
}

func TestHandle_ProcessorError(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	h, messenger := newTestHandler(t, &fakeProcessor{err: errors.New("session store down")}, m)

	assert.Equal(t, http.StatusOK, post(t, h, textEventBody, sign(textEventBody)))
	require.Len(t, messenger.replies, 1)
	assert.Equal(t, errorMessage, messenger.replies[0].messages[0].(*messaging_api.TextMessage).Text)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WebhookRequestsTotal.WithLabelValues("message", "error")))
}

func TestHandle_PanicIsContained(t *testing.T) {
	t.Parallel()
	h, messenger := newTestHandler(t, &fakeProcessor{panic: true}, nil)
	assert.Equal(t, http.StatusOK, post(t, h, textEventBody, sign(textEventBody)))
	assert.Empty(t, messenger.replies)
}

func TestHandle_ShortReplyTokenSkipped(t *testing.T) {
	t.Parallel()
	h, messenger := newTestHandler(t, &fakeProcessor{}, nil)
	body := strings.Replace(textEventBody, "0123456789abcdef", "short", 1)
	assert.Equal(t, http.StatusOK, post(t, h, body, sign(body)))
	assert.Empty(t, messenger.replies)
}

func TestShutdown_Timeout(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, &fakeProcessor{}, nil)
	release := make(chan struct{})
	h.wg.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
}
