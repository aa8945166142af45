package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"semql-indexer/internal/ddl"
	"semql-indexer/internal/mdl"
	"semql-indexer/internal/platform/logger"
	"semql-indexer/internal/store"
	"semql-indexer/internal/views"
)

// DocumentEmbedder augments an ordered sequence of texts with vectors.
type DocumentEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexingService drives a full re-index of one semantic model: validate the
// MDL once, then run the DDL stream and the view stream concurrently, each
// doing synthesize, embed, reset, persist.
//
// The destination stores are assumed to be exclusively owned for the duration
// of a run; the internal mutex serializes runs issued through the same
// service instance.
type IndexingService struct {
	embedder  DocumentEmbedder
	ddlStore  store.Store
	viewStore store.Store
	log       *logger.Logger

	mu sync.Mutex
}

// IndexResult reports how many documents each stream persisted.
type IndexResult struct {
	DDLDocuments  int `json:"ddl_documents"`
	ViewDocuments int `json:"view_documents"`
}

func NewIndexingService(embedder DocumentEmbedder, ddlStore, viewStore store.Store, log *logger.Logger) *IndexingService {
	return &IndexingService{
		embedder:  embedder,
		ddlStore:  ddlStore,
		viewStore: viewStore,
		log:       log.With("service", "indexing"),
	}
}

// Run indexes the raw MDL text. Failure of either stream fails the whole run;
// there is no rollback, so after a persist-stage failure the caller must
// retry the full run before trusting the destination again.
func (s *IndexingService) Run(ctx context.Context, rawMDL []byte) (*IndexResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := mdl.Parse(rawMDL)
	if err != nil {
		return nil, fmt.Errorf("validate mdl: %w", err)
	}
	s.log.Info("indexing run started",
		"models", len(manifest.Models),
		"relationships", len(manifest.Relationships),
		"metrics", len(manifest.Metrics),
		"views", len(manifest.Views),
	)

	result := &IndexResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		commands, err := ddl.Convert(manifest)
		if err != nil {
			return fmt.Errorf("ddl stream: synthesize: %w", err)
		}
		count, err := s.index(gctx, s.ddlStore, commands)
		if err != nil {
			return fmt.Errorf("ddl stream: %w", err)
		}
		result.DDLDocuments = count
		return nil
	})
	g.Go(func() error {
		count, err := s.index(gctx, s.viewStore, views.Format(manifest.Views))
		if err != nil {
			return fmt.Errorf("view stream: %w", err)
		}
		result.ViewDocuments = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Info("indexing run finished",
		"ddl_documents", result.DDLDocuments,
		"view_documents", result.ViewDocuments,
	)
	return result, nil
}

// index runs the embed, reset, persist stages for one stream. Embedding runs
// before the reset so that a provider failure leaves the previous index
// intact; only a failure of the final write can leave a partial destination.
func (s *IndexingService) index(ctx context.Context, dest store.Store, texts []string) (int, error) {
	docs := make([]store.Document, len(texts))
	for i, text := range texts {
		docs[i] = store.Document{ID: strconv.Itoa(i), Content: text}
	}

	if len(texts) > 0 {
		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		if len(embeddings) != len(docs) {
			return 0, fmt.Errorf("embed: got %d vectors for %d documents", len(embeddings), len(docs))
		}
		for i := range docs {
			docs[i].Embedding = embeddings[i]
		}
	}

	if err := store.Reset(ctx, dest); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	if err := dest.Write(ctx, docs); err != nil {
		return 0, fmt.Errorf("persist: %w", err)
	}
	return len(docs), nil
}
