package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("hello")
	h2 := ComputeHash("hello")
	h3 := ComputeHash("world")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "ok"}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
}

func TestCacheGetReturnsCopy(t *testing.T) {
	cache := NewCache(10)
	cache.Set("h", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Provider: "test", Hash: "h"})

	got, ok := cache.Get("h")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := cache.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0], "caller mutations must not reach the cached value")
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", &Embedding{Vector: []float32{1}})
	cache.Set("b", &Embedding{Vector: []float32{2}})
	cache.Set("c", &Embedding{Vector: []float32{3}})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry is evicted")
}

func TestCacheStats(t *testing.T) {
	cache := NewCache(10)
	cache.Set("a", &Embedding{Vector: []float32{1}})

	_, _ = cache.Get("a")
	_, _ = cache.Get("a")
	_, _ = cache.Get("missing")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	cache.Clear()
	stats = cache.Stats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(10)
	cache.Set("a", &Embedding{Vector: []float32{1}})
	require.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestLocalProviderDeterministic(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	ctx := context.Background()
	e1, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func add(a, b int) int"})
	require.NoError(t, err)
	e2, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func add(a, b int) int"})
	require.NoError(t, err)
	other, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "unrelated text"})
	require.NoError(t, err)

	assert.Equal(t, e1.Vector, e2.Vector)
	assert.NotEqual(t, e1.Vector, other.Vector)
	assert.Equal(t, LocalDimension, e1.Dimension)
	assert.Equal(t, ProviderLocal, e1.Provider)

	var norm float64
	for _, v := range e1.Vector {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4, "vectors are unit length")
}

func TestLocalProviderEmptyText(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProviderBatch(t *testing.T) {
	provider, err := NewLocalProvider(nil)
	require.NoError(t, err)

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"first", "second"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, ProviderLocal, resp.Provider)
	assert.NotEqual(t, resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)
}

func TestLocalProviderUsesCache(t *testing.T) {
	cache := NewCache(10)
	provider, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "cache me"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	cached, ok := cache.Get(ComputeHash("cache me"))
	require.True(t, ok)
	assert.Equal(t, LocalDimension, cached.Dimension)
}

func TestHTTPProviderBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"model": req.Model, "data": []map[string]interface{}{}}
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			// Not unit length; the client normalizes.
			data[i] = map[string]interface{}{"embedding": []float32{3, 4, 0}, "index": i}
		}
		resp["data"] = data
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	cache := NewCache(10)
	p := &httpProvider{
		name:       "test",
		endpoint:   server.URL,
		apiKey:     "test-key",
		model:      "test-model",
		dimension:  3,
		httpClient: server.Client(),
		cache:      cache,
	}

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.InDelta(t, 0.6, resp.Embeddings[0].Vector[0], 1e-6, "response vectors are normalized")
	assert.Equal(t, 2, cache.Size())

	// Single-text requests hit the cache before the network.
	server.Close()
	single, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, single.Vector[1], 1e-6)
}

func TestHTTPProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := &httpProvider{
		name:       "test",
		endpoint:   server.URL,
		apiKey:     "test-key",
		model:      "test-model",
		dimension:  3,
		httpClient: server.Client(),
	}

	// A provider reports the failure and stops; callers own retry policy.
	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a"}})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestHTTPProviderBatchLimit(t *testing.T) {
	p := &httpProvider{name: "test", model: "m"}
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNewExplicitConfig(t *testing.T) {
	emb, err := New(Config{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider(), "empty provider defaults to local")

	_, err = New(Config{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	emb, err = New(Config{Provider: "OpenAI", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider(), "provider name is case-insensitive")
}

func TestNewMissingAPIKey(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	_, err := New(Config{Provider: ProviderJina})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvJinaAPIKey, "jina-test")
	assert.Equal(t, ProviderJina, DetectProvider(), "jina wins when both keys are present")

	t.Setenv(EnvProvider, "LOCAL")
	assert.Equal(t, ProviderLocal, DetectProvider(), "explicit selection overrides keys")
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvProvider, "local")
	emb, err := NewFromEnv(nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	t.Setenv(EnvProvider, "unknown")
	_, err = NewFromEnv(nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
