// Package index writes docset documents into a per-docset vector collection
// and answers questions over it.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/data/keylock"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/rag/embedding"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type Builder struct {
	store    vectorDB.Store
	cache    vectorDB.AnswerCache
	embedder embedding.Embedder
	model    llm.Provider
	topK     uint64
	batch    int
	locks    *keylock.Locks
	logger   *logger_i.Logger
}

// NewBuilder wires the index. cache may be nil to disable answer caching.
func NewBuilder(store vectorDB.Store, cache vectorDB.AnswerCache, embedder embedding.Embedder, model llm.Provider, cfg config.Index) *Builder {
	topK := cfg.TopK
	if topK == 0 {
		topK = 6
	}
	batch := cfg.UpsertBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Builder{
		store:    store,
		cache:    cache,
		embedder: embedder,
		model:    model,
		topK:     topK,
		batch:    batch,
		locks:    keylock.New(),
		logger:   logger_i.NewLogger("vector index"),
	}
}

// Create upserts docs into the docset's collection, creating it if needed.
// Records already present stay, a repeated id replaces its record.
func (b *Builder) Create(ctx context.Context, docs []docModel.Document, docsetID string) (*VectorEngine, error) {
	return b.BuildVectorQueryEngine(ctx, docs, docsetID, docModel.Create)
}

// Recreate deletes the docset's collection and its cached answers, then
// indexes docs into a fresh one.
func (b *Builder) Recreate(ctx context.Context, docs []docModel.Document, docsetID string) (*VectorEngine, error) {
	return b.BuildVectorQueryEngine(ctx, docs, docsetID, docModel.Recreate)
}

// BuildVectorQueryEngine is serialized per docset.
func (b *Builder) BuildVectorQueryEngine(ctx context.Context, docs []docModel.Document, docsetID string, mode docModel.IndexMode) (*VectorEngine, error) {
	if docsetID == "" {
		return nil, errors.New("index: empty docset id")
	}
	logger := b.logger.WithTrace(ctx).With("docsetId", docsetID, "mode", mode.String())

	unlock := b.locks.Lock(docsetID)
	defer unlock()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	if mode == docModel.Recreate {
		logger.Warn("Deleting existing collection")
		if err := b.store.DeleteCollection(ctx, docsetID); err != nil {
			return nil, fmt.Errorf("delete collection: %w", err)
		}
		if b.cache != nil {
			if err := b.cache.DropCache(ctx, docsetID); err != nil {
				logger.Warn("Could not drop answer cache", "error", err)
			}
		}
	}

	if err := b.store.EnsureCollection(ctx, docsetID, b.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	docs = withText(docs)
	for i := 0; i < len(docs); i += b.batch {
		end := min(i+b.batch, len(docs))
		if err := b.upsertBatch(ctx, docsetID, docs[i:end]); err != nil {
			return nil, err
		}
		logger.Debug("Upserted batch", "from", i, "to", end)
	}
	logger.Info("Indexed documents", "count", len(docs))

	return &VectorEngine{collection: docsetID, b: b}, nil
}

// Open returns an engine over an existing collection without writing to it.
func (b *Builder) Open(docsetID string) *VectorEngine {
	return &VectorEngine{collection: docsetID, b: b}
}

func (b *Builder) upsertBatch(ctx context.Context, collection string, docs []docModel.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := b.embedder.BatchEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(docs))
	}

	records := make([]vectorDB.Record, len(docs))
	for i, d := range docs {
		records[i] = vectorDB.Record{ID: d.ID, Vector: vectors[i], Text: d.Text, Metadata: d.Metadata}
	}
	if err := b.store.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// withText drops documents without text and keeps the last of repeated ids.
func withText(docs []docModel.Document) []docModel.Document {
	seen := make(map[string]int, len(docs))
	out := make([]docModel.Document, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if i, ok := seen[d.ID]; ok {
			out[i] = d
			continue
		}
		seen[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
