package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semql-indexer/internal/platform/logger"
)

type qdrantFake struct {
	mux *http.ServeMux

	exists      bool
	count       int
	created     []map[string]any
	deleteBody  map[string]any
	upsertBody  map[string]any
	upsertQuery string
}

func newQdrantFake(exists bool) *qdrantFake {
	f := &qdrantFake{mux: http.NewServeMux(), exists: exists}

	// Method-prefixed ServeMux patterns need Go 1.22+, so routes are
	// registered by path and dispatched on method by hand.
	handle := func(method, path string, h http.HandlerFunc) {
		f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}

	handle(http.MethodGet, "/collections/test/exists", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{"exists": f.exists})
	})
	handle(http.MethodPut, "/collections/test", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body)
		writeResult(w, true)
	})
	handle(http.MethodPost, "/collections/test/points/count", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{"count": f.count})
	})
	handle(http.MethodPost, "/collections/test/points/delete", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.deleteBody)
		writeResult(w, true)
	})
	handle(http.MethodPut, "/collections/test/points", func(w http.ResponseWriter, r *http.Request) {
		f.upsertQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&f.upsertBody)
		writeResult(w, true)
	})

	return f
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func newTestQdrant(t *testing.T, f *qdrantFake) *Qdrant {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	q, err := NewQdrant(context.Background(), logger.NewNop(), QdrantConfig{
		URL:        srv.URL,
		Collection: "test",
		VectorDim:  3,
	})
	require.NoError(t, err)
	return q
}

func TestNewQdrantCreatesMissingCollection(t *testing.T) {
	f := newQdrantFake(false)
	newTestQdrant(t, f)

	require.Len(t, f.created, 1)
	vectors, ok := f.created[0]["vectors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestNewQdrantKeepsExistingCollection(t *testing.T) {
	f := newQdrantFake(true)
	newTestQdrant(t, f)

	assert.Empty(t, f.created)
}

func TestQdrantCount(t *testing.T) {
	f := newQdrantFake(true)
	f.count = 7
	q := newTestQdrant(t, f)

	count, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestQdrantWriteRequestShape(t *testing.T) {
	f := newQdrantFake(true)
	q := newTestQdrant(t, f)

	docs := []Document{
		{ID: "0", Content: "CREATE TABLE a ();", Embedding: []float32{1, 2, 3}},
		{ID: "1", Content: "CREATE TABLE b ();", Embedding: []float32{4, 5, 6}},
	}
	require.NoError(t, q.Write(context.Background(), docs))

	assert.Equal(t, "wait=true", f.upsertQuery)
	points, ok := f.upsertBody["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 2)

	first, ok := points[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, q.pointID("0"), first["id"])
	payload, ok := first["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0", payload["id"])
	assert.Equal(t, "CREATE TABLE a ();", payload["content"])
}

func TestQdrantWriteIsOverwriteByID(t *testing.T) {
	f := newQdrantFake(true)
	q := newTestQdrant(t, f)

	// Same document id maps to the same point id across runs, so an upsert
	// replaces rather than appends.
	assert.Equal(t, q.pointID("0"), q.pointID("0"))
	assert.NotEqual(t, q.pointID("0"), q.pointID("1"))
}

func TestQdrantWriteRejectsDimensionMismatch(t *testing.T) {
	f := newQdrantFake(true)
	q := newTestQdrant(t, f)

	err := q.Write(context.Background(), []Document{{ID: "0", Embedding: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
	assert.Nil(t, f.upsertBody)
}

func TestQdrantDeleteMapsDocumentIDsToPointIDs(t *testing.T) {
	f := newQdrantFake(true)
	q := newTestQdrant(t, f)

	require.NoError(t, q.Delete(context.Background(), []string{"0", "1"}))

	points, ok := f.deleteBody["points"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{q.pointID("0"), q.pointID("1")}, points)
}

func TestQdrantDeleteNothing(t *testing.T) {
	f := newQdrantFake(true)
	q := newTestQdrant(t, f)

	require.NoError(t, q.Delete(context.Background(), nil))
	assert.Nil(t, f.deleteBody)
}

func TestQdrantSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such collection", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := NewQdrant(context.Background(), logger.NewNop(), QdrantConfig{
		URL:        srv.URL,
		Collection: "test",
		VectorDim:  3,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
