package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"semql-indexer/internal/platform/logger"
)

const maxErrorBody = 1024

// Point ids in qdrant must be UUIDs or integers, so document ids are mapped
// to deterministic UUIDv5 values. Same document id, same point id — that is
// what makes a write an overwrite.
var pointNamespace = uuid.MustParse("8f1c9f6e-6d4a-4c8e-9b3a-2e7c5d1a0b42")

// QdrantConfig holds connection settings for one qdrant collection.
type QdrantConfig struct {
	URL        string
	Collection string
	VectorDim  int
}

// Qdrant is a document store backed by a single qdrant collection, speaking
// the plain HTTP API.
type Qdrant struct {
	log        *logger.Logger
	baseURL    string
	collection string
	vectorDim  int
	httpClient *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// NewQdrant connects to qdrant, verifies it is ready, and creates the
// collection if it does not exist yet.
func NewQdrant(ctx context.Context, log *logger.Logger, cfg QdrantConfig) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("qdrant vector dim must be positive")
	}

	q := &Qdrant{
		log:        log.With("store", "qdrant", "collection", cfg.Collection),
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		vectorDim:  cfg.VectorDim,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Count returns the exact number of documents in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	req := map[string]any{"exact": true}
	if err := q.doJSON(ctx, http.MethodPost, q.collectionPath("/points/count"), req, &result); err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return result.Count, nil
}

// Delete removes the documents with the given ids. Unknown ids are ignored by
// qdrant, which keeps the reset idempotent.
func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		points = append(points, q.pointID(id))
	}
	req := map[string]any{"points": points}
	if err := q.doJSON(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// Write upserts the documents, replacing any point that already carries the
// same document id.
func (q *Qdrant) Write(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			return fmt.Errorf("document id is required")
		}
		if len(doc.Embedding) != q.vectorDim {
			return fmt.Errorf("document %q embedding dimension mismatch: expected=%d got=%d",
				doc.ID, q.vectorDim, len(doc.Embedding))
		}
		points = append(points, map[string]any{
			"id":     q.pointID(doc.ID),
			"vector": doc.Embedding,
			"payload": map[string]any{
				"id":      doc.ID,
				"content": doc.Content,
			},
		})
	}
	req := map[string]any{"points": points}
	if err := q.doJSON(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), req, nil); err != nil {
		return fmt.Errorf("qdrant write failed: %w", err)
	}
	return nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     q.vectorDim,
			"distance": "Cosine",
		},
	}
	if err := q.doJSON(ctx, http.MethodPut, q.collectionPath(""), req, nil); err != nil {
		return fmt.Errorf("create qdrant collection failed: %w", err)
	}
	q.log.Info("created qdrant collection", "vector_dim", q.vectorDim)
	return nil
}

func (q *Qdrant) collectionExists(ctx context.Context) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	if err := q.doJSON(ctx, http.MethodGet, q.collectionPath("/exists"), nil, &result); err != nil {
		return false, fmt.Errorf("check qdrant collection failed: %w", err)
	}
	return result.Exists, nil
}

func (q *Qdrant) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request failed: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw))
	}

	if out == nil {
		return nil
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope failed: %w", err)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result failed: %w", err)
	}
	return nil
}

func (q *Qdrant) pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(q.collection+"|"+docID)).String()
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.collection + suffix
}

func truncate(raw []byte) string {
	if len(raw) <= maxErrorBody {
		return string(raw)
	}
	return string(raw[:maxErrorBody]) + "..."
}
