package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/tamly-chatbot-go/internal/composer"
	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
)

const (
	testQuestion = "Bạn có hay mất ngủ không?"
	testAnswer   = "Theo DSM-5, mất ngủ kéo dài là dấu hiệu nên được chuyên gia đánh giá."
)

type testEnv struct {
	router *gin.Engine
	store  *conversation.MemoryStore
	arch   *history.Store
}

func newTestEnv(t *testing.T, limiter *ratelimit.Keyed) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := logger.NewWithWriter("error", io.Discard)

	sets := keyword.Defaults()
	collab := composer.CollaboratorFunc(func(_ context.Context, query string) (string, error) {
		if strings.Contains(query, "trắc nghiệm") {
			return testQuestion, nil
		}
		return testAnswer, nil
	})
	comp, err := composer.New(collab, emotion.NewDetector(emotion.DefaultLexicon()), composer.Options{
		LabeledOptions: true,
		Topics:         sets.Emotion,
		Logger:         quiet,
	})
	require.NoError(t, err)

	arch := history.NewStore(filepath.Join(t.TempDir(), "history.json"), quiet)
	engine, err := conversation.NewEngine(conversation.Config{
		Classifier: keyword.NewClassifier(sets, true),
		Composer:   comp,
		Archive:    arch,
		Logger:     quiet,
	})
	require.NoError(t, err)

	store := conversation.NewMemoryStore()
	srv, err := New(Config{
		Engine:   engine,
		Sessions: store,
		Archive:  arch,
		Limiter:  limiter,
		Logger:   quiet,
	})
	require.NoError(t, err)

	r := gin.New()
	srv.Register(r)
	return &testEnv{router: r, store: store, arch: arch}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	code, body := e.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, code)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	code, body := env.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["id"])
	assert.Empty(t, body["transcript"])
	assert.NotContains(t, body, "pending_quiz")

	// A disclosure issues a quiz.
	code, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/input", inputRequest{Text: "Dạo này tôi thấy buồn và mệt mỏi"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, testQuestion, body["question"])
	assert.Len(t, body["options"], 5)

	code, body = env.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "pending_quiz")
	assert.Len(t, body["transcript"], 2)

	// Answer by rank.
	code, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/answer", answerRequest{Answer: "2"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["response"])

	s, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, s.Quiz.Pending)
	assert.Len(t, s.Transcript, 4)

	// The quiz is gone now.
	code, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/answer", answerRequest{Answer: "2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no pending quiz", body["error"])
}

func TestAnswer_WithUtterance(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	code, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/input", inputRequest{Text: "Tôi thấy buồn quá"})
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/answer", answerRequest{Text: "tôi mất ngủ", Answer: "không có lựa chọn này"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/answer", answerRequest{Text: "tôi mất ngủ", Answer: "Thường xuyên"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["response"])
}

func TestErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/missing", nil, http.StatusNotFound},
		{"input to unknown session", http.MethodPost, "/api/sessions/missing/input", inputRequest{Text: "chào"}, http.StatusNotFound},
		{"malformed input", http.MethodPost, "/api/sessions/" + id + "/input", "{not json", http.StatusBadRequest},
		{"empty answer", http.MethodPost, "/api/sessions/" + id + "/answer", answerRequest{}, http.StatusBadRequest},
		{"answer without quiz", http.MethodPost, "/api/sessions/" + id + "/answer", answerRequest{Answer: "1"}, http.StatusConflict},
		{"open without name", http.MethodPost, "/api/sessions/" + id + "/open", openRequest{}, http.StatusBadRequest},
		{"open unknown conversation", http.MethodPost, "/api/sessions/" + id + "/open", openRequest{Name: "không tồn tại"}, http.StatusNotFound},
		{"search without query", http.MethodGet, "/api/conversations/search", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestConversations(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	code, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/input", inputRequest{Text: "Trầm cảm là gì"})
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/new", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["transcript"])

	code, body = env.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, code)
	convs := body["conversations"].([]any)
	require.Len(t, convs, 1)
	first := convs[0].(map[string]any)
	assert.Equal(t, "Trầm cảm là gì", first["name"])
	assert.EqualValues(t, 2, first["message_count"])

	code, body = env.do(t, http.MethodGet, "/api/conversations/search?q=TRẦM", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["conversations"], 1)

	code, body = env.do(t, http.MethodGet, "/api/conversations/search?q=hoảng+loạn", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["conversations"])

	code, body = env.do(t, http.MethodPost, "/api/sessions/"+id+"/open", openRequest{Name: "Trầm cảm là gì"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Trầm cảm là gì", body["name"])
	assert.Len(t, body["transcript"], 2)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.NewKeyed(ratelimit.KeyedConfig{Name: ratelimit.NameAPI, Burst: 1, RefillPerSec: 0.001})
	defer limiter.Stop()
	env := newTestEnv(t, limiter)
	id := env.createSession(t)

	code, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/input", inputRequest{Text: "chào"})
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/input", strings.NewReader(`{"text":"chào"}`))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	// Reads are not throttled.
	code, _ = env.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestWebsocket(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	ts := httptest.NewServer(env.router)
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/api/sessions/missing/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(base+"/api/sessions/"+id+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()

	exchange := func(req wsRequest) wsResponse {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		require.NoError(t, conn.SetReadDeadline(deadline))
		require.NoError(t, conn.SetWriteDeadline(deadline))
		require.NoError(t, conn.WriteJSON(req))
		var out wsResponse
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	got := exchange(wsRequest{Type: frameAnswer, Answer: "1"})
	assert.Equal(t, frameError, got.Type)
	assert.Equal(t, http.StatusConflict, got.Status)

	got = exchange(wsRequest{Type: frameInput, Text: "Tôi cảm thấy lo lắng và buồn"})
	assert.Equal(t, frameReply, got.Type)
	assert.Equal(t, testQuestion, got.Question)
	assert.Len(t, got.Options, 5)

	got = exchange(wsRequest{Type: frameAnswer, Answer: got.Options[0]})
	assert.Equal(t, frameReply, got.Type)
	assert.NotEmpty(t, got.Response)

	got = exchange(wsRequest{Type: "ping"})
	assert.Equal(t, frameError, got.Type)
	assert.Equal(t, http.StatusBadRequest, got.Status)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}
