package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/tamly-chatbot-go/internal/genai"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
)

// stubCompleter captures the last request.
type stubCompleter struct {
	text string
	err  error
	last genai.Request
}

func (s *stubCompleter) Complete(_ context.Context, req genai.Request) (string, error) {
	s.last = req
	return s.text, s.err
}
func (s *stubCompleter) Provider() genai.Provider { return genai.ProviderGroq }
func (s *stubCompleter) Model() string            { return "stub" }
func (s *stubCompleter) Close() error             { return nil }

// failingSearcher always errors.
type failingSearcher struct{}

func (failingSearcher) SearchDocuments(context.Context, string, int) ([]storage.Document, error) {
	return nil, errors.New("disk I/O error")
}

// ingestCorpus stores the test corpus in a fresh database and loads an index from it.
func ingestCorpus(t *testing.T, m *metrics.Metrics) (*storage.DB, *Index) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.NewTestDB(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sources := []Source{
		{Name: "trauma.txt", Text: "Rối loạn trầm cảm chủ yếu: khí sắc buồn kéo dài ít nhất hai tuần."},
		{Name: "anxiety.txt", Text: "Rối loạn lo âu lan tỏa: lo lắng quá mức khó kiểm soát."},
		{Name: "sleep.txt", Text: "Rối loạn mất ngủ: khó bắt đầu hoặc duy trì giấc ngủ."},
		{Name: "panic.txt", Text: "Rối loạn hoảng sợ: các cơn hoảng sợ tái diễn bất ngờ."},
		{Name: "empty.txt", Text: "  "},
	}
	n, err := Ingest(ctx, db, NewSplitter(DefaultChunkSize, DefaultChunkOverlap), sources)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	idx := NewIndex(logger.New("error"))
	require.NoError(t, idx.Load(ctx, db, m))
	return db, idx
}

func TestIngest_ReplacesSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := ingestCorpus(t, nil)

	n, err := Ingest(ctx, db, nil, []Source{{Name: "sleep.txt", Text: "Mất ngủ mạn tính."}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := db.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "re-ingesting a source replaces its chunks")

	// A source that yields nothing keeps its previous chunks.
	_, err = Ingest(ctx, db, nil, []Source{{Name: "sleep.txt", Text: ""}})
	require.NoError(t, err)
	count, err = db.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRetriever_Search(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	db, idx := ingestCorpus(t, m)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.IndexDocuments))

	r := NewRetriever(idx, db, 2, m, logger.New("error"))
	assert.Equal(t, 2, r.TopK())

	hits, err := r.Search(context.Background(), "trầm cảm", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.LessOrEqual(t, len(hits), 2)
	assert.Contains(t, hits[0].Doc.Content, "trầm cảm")
	assert.Equal(t, 1, hits[0].Rank)

	hits, err = r.Search(context.Background(), "xyzzy", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = r.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetrievalSearchesTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetrievalSearchesTotal.WithLabelValues("miss")))
}

func TestRetriever_LiteralFailureDegrades(t *testing.T) {
	t.Parallel()
	_, idx := ingestCorpus(t, nil)
	r := NewRetriever(idx, failingSearcher{}, 0, nil, nil)
	assert.Equal(t, DefaultTopK, r.TopK())

	hits, err := r.Search(context.Background(), "lo âu", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Doc.Content, "lo âu")
}

func TestNewQAChain_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewQAChain(nil, &stubCompleter{}, QAOptions{})
	assert.Error(t, err)
	_, err = NewQAChain(NewRetriever(NewIndex(logger.New("error")), nil, 0, nil, nil), nil, QAOptions{})
	assert.Error(t, err)
}

func TestQAChain_RetrieveAndGenerate(t *testing.T) {
	t.Parallel()
	db, idx := ingestCorpus(t, nil)
	completer := &stubCompleter{text: "Trầm cảm là một rối loạn khí sắc."}
	qa, err := NewQAChain(NewRetriever(idx, db, 3, nil, nil), completer, QAOptions{Temperature: 0.01, MaxTokens: 512})
	require.NoError(t, err)

	got, err := qa.RetrieveAndGenerate(context.Background(), "trầm cảm là gì")
	require.NoError(t, err)
	assert.Equal(t, completer.text, got)

	req := completer.last
	assert.Equal(t, genai.SystemPrompt, req.System)
	assert.Contains(t, req.Prompt, "khí sắc buồn kéo dài")
	assert.True(t, strings.HasSuffix(req.Prompt, "Câu hỏi: trầm cảm là gì\n\nCâu trả lời:"), req.Prompt)
	assert.InDelta(t, 0.01, req.Temperature, 1e-6)
	assert.Equal(t, 512, req.MaxTokens)
}

func TestQAChain_NoContext(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{text: "Mình chưa có tài liệu về điều này."}
	qa, err := NewQAChain(NewRetriever(NewIndex(logger.New("error")), nil, 3, nil, nil), completer, QAOptions{})
	require.NoError(t, err)

	_, err = qa.RetrieveAndGenerate(context.Background(), "rối loạn ăn uống")
	require.NoError(t, err)
	assert.Contains(t, completer.last.Prompt, "(Không tìm thấy tài liệu liên quan.)")
}

func TestQAChain_CompletionError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("all providers failed")
	qa, err := NewQAChain(NewRetriever(NewIndex(logger.New("error")), nil, 3, nil, nil), &stubCompleter{err: sentinel}, QAOptions{})
	require.NoError(t, err)

	_, err = qa.RetrieveAndGenerate(context.Background(), "lo âu")
	assert.ErrorIs(t, err, sentinel)
}
