package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbedder(EmbeddingConfig{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		BatchSize: 2,
	})
}

func TestEmbedBatchSplitsIntoProviderBatches(t *testing.T) {
	var calls int
	var batchSizes []int
	e := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		batchSizes = append(batchSizes, len(req.Input))

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{float32(len(req.Input[i]))}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	embeddings, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
	require.Len(t, embeddings, len(texts))
	for i, text := range texts {
		assert.Equal(t, []float32{float32(len(text))}, embeddings[i])
	}
}

func TestEmbedBatchRestoresProviderOrder(t *testing.T) {
	e := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Provider returns items out of order; index must win.
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"index": 1, "embedding": []float32{2}},
			{"index": 0, "embedding": []float32{1}},
		}})
	})

	embeddings, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, embeddings)
}

func TestEmbedBatchSurfacesProviderError(t *testing.T) {
	e := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbedBatchRejectsShortResponse(t *testing.T) {
	e := newEmbeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	e := NewEmbedder(EmbeddingConfig{})

	embeddings, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}
