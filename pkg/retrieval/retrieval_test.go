package retrieval

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// keywordEmbedder строит вектор из числа вхождений ключевых слов.
type keywordEmbedder struct {
	mu       sync.Mutex
	keywords []string
	calls    [][]string
	failures []error // ошибки для первых вызовов
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords}
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	if len(e.failures) > 0 {
		err := e.failures[0]
		e.failures = e.failures[1:]
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(e.keywords)+1)
		lower := strings.ToLower(text)
		for j, kw := range e.keywords {
			v[j] = float32(strings.Count(lower, kw))
		}
		v[len(e.keywords)] = 0.01
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSplitter(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		size       int
		overlap    int
		separators []string
		want       []string
	}{
		{
			name:       "overlap keeps previous tail",
			text:       "aa,bb,cc,dd",
			size:       7,
			overlap:    3,
			separators: []string{","},
			want:       []string{"aa,bb,", "bb,cc,", "cc,dd"},
		},
		{
			name:       "long paragraph falls through to next separator",
			text:       "aaa. bbb. ccc.\n\nddd",
			size:       10,
			overlap:    0,
			separators: []string{"\n\n", "."},
			want:       []string{"aaa. bbb.", "ccc.", "ddd"},
		},
		{
			name:       "short text is one chunk",
			text:       "  hello world  ",
			size:       200,
			overlap:    20,
			separators: nil,
			want:       []string{"hello world"},
		},
		{
			name:       "no separator present",
			text:       "abcdefghij",
			size:       4,
			overlap:    0,
			separators: []string{","},
			want:       []string{"abcdefghij"},
		},
		{
			name:       "runes not bytes",
			text:       "가나다,라마바",
			size:       5,
			overlap:    0,
			separators: []string{","},
			want:       []string{"가나다,", "라마바"},
		},
		{
			name:       "empty text",
			text:       "",
			size:       10,
			overlap:    0,
			separators: []string{","},
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap, tt.separators)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Split(tt.text))
		})
	}
}

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(0, 0, nil)
	assert.Error(t, err)

	_, err = NewSplitter(10, 10, nil)
	assert.Error(t, err)

	_, err = NewSplitter(10, -1, nil)
	assert.Error(t, err)
}

func TestRemoveStopwords(t *testing.T) {
	got := RemoveStopwords("호텔 의 방 은 깨끗 하다\n위치 가 좋아요 nan", DefaultStopwords)
	assert.Equal(t, "호텔 방 깨끗\n위치 좋아요", got)

	assert.Equal(t, "as is", RemoveStopwords("as is", nil))
}

func TestCosineSimilarity(t *testing.T) {
	same, err := CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	orth, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orth, 1e-9)

	zero, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestStore_AddSearchCount(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.Add(ctx, "reviews", []Chunk{
		{Source: "a.txt", Content: "north", Embedding: []float32{1, 0, 0}},
		{Source: "a.txt", Content: "east", Embedding: []float32{0, 1, 0}},
		{Source: "b.txt", Content: "north-east", Embedding: []float32{0.7, 0.7, 0}},
	}))
	require.NoError(t, store.Add(ctx, "other", []Chunk{
		{Source: "c.txt", Content: "elsewhere", Embedding: []float32{1, 0, 0}},
	}))

	matches, err := store.Search(ctx, "reviews", []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "north", matches[0].Content)
	assert.Equal(t, "north-east", matches[1].Content)
	assert.Equal(t, "reviews", matches[0].Collection)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Empty(t, cmp.Diff([]float32{1, 0, 0}, matches[0].Embedding))

	n, err := store.Count(ctx, "reviews")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	deleted, err := store.DeleteCollection(ctx, "reviews")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	n, err = store.Count(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	assert.Error(t, store.Add(ctx, "", []Chunk{{Content: "x", Embedding: []float32{1}}}))
	assert.Error(t, store.Add(ctx, "c", []Chunk{{Content: "x"}}))

	require.NoError(t, store.Add(ctx, "c", []Chunk{{Content: "x", Embedding: []float32{1, 2}}}))
	_, err := store.Search(ctx, "c", []float32{1}, 1)
	assert.Error(t, err)

	matches, err := store.Search(ctx, "missing", []float32{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRetriever_Texts(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	embedder := newKeywordEmbedder("seoul", "busan")

	require.NoError(t, store.Add(ctx, "guide", []Chunk{
		{Content: "Busan has beaches", Embedding: []float32{0, 1, 0.01}},
		{Content: "Seoul has palaces", Embedding: []float32{1, 0, 0.01}},
	}))

	r := NewRetriever(store, embedder, "guide", 1)
	texts, err := r.Texts(ctx, "what to see in Seoul")
	require.NoError(t, err)
	assert.Equal(t, []string{"Seoul has palaces"}, texts)

	_, err = r.Texts(ctx, "   ")
	assert.Error(t, err)
}

func TestHistoryAwareRetriever(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	embedder := newKeywordEmbedder("seoul", "busan")
	require.NoError(t, store.Add(ctx, "guide", []Chunk{
		{Content: "Busan has beaches", Embedding: []float32{0, 1, 0.01}},
		{Content: "Seoul has palaces", Embedding: []float32{1, 0, 0.01}},
	}))

	var seen [][]llm.Message
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message, _ ...llm.GenerateOption) (llm.Message, error) {
		seen = append(seen, msgs)
		return llm.Message{Role: llm.RoleAssistant, Content: "  What can I see in Busan?  "}, nil
	})
	h := NewHistoryAwareRetriever(provider, NewRetriever(store, embedder, "guide", 1), "")

	t.Run("no history skips the model", func(t *testing.T) {
		texts, err := h.Retrieve(ctx, "Seoul sights", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Seoul has palaces"}, texts)
		assert.Empty(t, seen)
	})

	t.Run("history reformulates the question", func(t *testing.T) {
		history := []llm.Message{
			{Role: llm.RoleUser, Content: "I'm going to Busan"},
			{Role: llm.RoleAssistant, Content: "Nice!"},
		}
		texts, err := h.Retrieve(ctx, "what can I see there?", history)
		require.NoError(t, err)
		assert.Equal(t, []string{"Busan has beaches"}, texts)

		require.Len(t, seen, 1)
		msgs := seen[0]
		require.Len(t, msgs, 4)
		assert.Equal(t, llm.RoleSystem, msgs[0].Role)
		assert.Equal(t, ContextualizePrompt, msgs[0].Content)
		assert.Equal(t, "what can I see there?", msgs[3].Content)
	})

	t.Run("provider error", func(t *testing.T) {
		failing := NewHistoryAwareRetriever(llm.ProviderFunc(
			func(context.Context, []llm.Message, ...llm.GenerateOption) (llm.Message, error) {
				return llm.Message{}, &apperr.UpstreamError{Service: "openai", Status: 500}
			}), NewRetriever(store, embedder, "guide", 1), "")
		_, err := failing.Retrieve(ctx, "q", []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
		assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	})
}

func newTestIndexer(t *testing.T, embedder llm.Embedder, cfg IndexerConfig) (*Indexer, *Store, *[]time.Duration) {
	t.Helper()
	store := openMemoryStore(t)
	splitter, err := NewSplitter(20, 0, []string{"."})
	require.NoError(t, err)

	var mu sync.Mutex
	var sleeps []time.Duration
	ix := NewIndexer(store, embedder, splitter, cfg)
	ix.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return nil
	}
	return ix, store, &sleeps
}

func TestIndexer_BatchesAndStoresInOrder(t *testing.T) {
	ctx := context.Background()
	embedder := newKeywordEmbedder("seoul", "busan")
	ix, store, _ := newTestIndexer(t, embedder, IndexerConfig{BatchSize: 2, Workers: 3})

	stats, err := ix.Index(ctx, "guide", []Document{
		{Source: "one.txt", Text: "Seoul palace tour. Busan beach walk. Seoul night market."},
		{Source: "two.txt", Text: "Busan fish market. Jeju hiking trail."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 5, stats.Chunks)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 0, stats.Retries)
	assert.Equal(t, 3, embedder.callCount())

	n, err := store.Count(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	matches, err := store.Search(ctx, "guide", []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Content, "Busan")
}

func TestIndexer_RetriesRateLimit(t *testing.T) {
	ctx := context.Background()
	embedder := newKeywordEmbedder("seoul")
	embedder.failures = []error{
		&apperr.UpstreamError{Service: "openai", Status: 429},
		&apperr.UpstreamError{Service: "openai", Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}},
	}
	ix, store, sleeps := newTestIndexer(t, embedder, IndexerConfig{Workers: 1, RetryDelay: time.Minute})

	stats, err := ix.Index(ctx, "guide", []Document{{Source: "a", Text: "Seoul."}})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Retries)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, *sleeps)

	n, err := store.Count(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndexer_FailsWithoutStoring(t *testing.T) {
	ctx := context.Background()

	t.Run("non retryable", func(t *testing.T) {
		embedder := newKeywordEmbedder("seoul")
		embedder.failures = []error{&apperr.UpstreamError{Service: "openai", Status: 401}}
		ix, store, sleeps := newTestIndexer(t, embedder, IndexerConfig{Workers: 1})

		_, err := ix.Index(ctx, "guide", []Document{{Text: "Seoul."}})
		assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
		assert.Empty(t, *sleeps)

		n, err := store.Count(ctx, "guide")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		embedder := newKeywordEmbedder("seoul")
		for range 3 {
			embedder.failures = append(embedder.failures, &apperr.UpstreamError{Service: "openai", Status: 429})
		}
		ix, _, sleeps := newTestIndexer(t, embedder, IndexerConfig{Workers: 1, MaxRetries: 2})

		_, err := ix.Index(ctx, "guide", []Document{{Text: "Seoul."}})
		assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
		assert.Len(t, *sleeps, 2)
		assert.Equal(t, 3, embedder.callCount())
	})
}

func TestIsRetryable(t *testing.T) {
	transport := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &apperr.UpstreamError{Service: "openai", Status: 429}, true},
		{"server error", &apperr.UpstreamError{Service: "gemini", Status: 503}, true},
		{"invalid key", &apperr.UpstreamError{Service: "gemini", Status: 400, Body: "API key not valid"}, false},
		{"unauthorized", &apperr.UpstreamError{Service: "openai", Status: 401}, false},
		{"no status, unknown cause", &apperr.UpstreamError{Service: "gemini", Err: errors.New("Error 400, API key not valid")}, false},
		{"no status, transport", &apperr.UpstreamError{Service: "openai", Err: transport}, true},
		{"deadline", &apperr.UpstreamError{Service: "openai", Err: context.DeadlineExceeded}, false},
		{"not upstream", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestIndexer_PermanentErrorIsNotRetried(t *testing.T) {
	embedder := newKeywordEmbedder("seoul")
	embedder.failures = []error{&apperr.UpstreamError{Service: "gemini", Status: 400, Body: "API key not valid"}}
	ix, _, sleeps := newTestIndexer(t, embedder, IndexerConfig{Workers: 1, RetryDelay: time.Minute})

	_, err := ix.Index(context.Background(), "guide", []Document{{Text: "Seoul."}})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Empty(t, *sleeps)
	assert.Equal(t, 1, embedder.callCount())
}

func TestIndexer_StopwordsRemovedBeforeSplitting(t *testing.T) {
	ctx := context.Background()
	embedder := newKeywordEmbedder("seoul")
	ix, store, _ := newTestIndexer(t, embedder, IndexerConfig{Stopwords: DefaultStopwords})

	_, err := ix.Index(ctx, "reviews", []Document{{Text: "방 은 깨끗"}})
	require.NoError(t, err)

	matches, err := store.Search(ctx, "reviews", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "방 깨끗", matches[0].Content)
}
