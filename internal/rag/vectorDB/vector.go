package vectorDB

import (
	"context"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
)

type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata docModel.Metadata
}

type Hit struct {
	ID       string
	Text     string
	Metadata docModel.Metadata
	Score    float32
}

// Store is a collection-per-docset vector index. Upsert with an existing id
// replaces the record.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, records []Record) error
	Search(ctx context.Context, name string, vector []float32, limit uint64) ([]Hit, error)
}

// AnswerCache stores synthesized answers keyed by question embedding.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, collection string, queryVector []float32) (string, bool, error)
	SaveToCache(ctx context.Context, collection string, queryVector []float32, answer string) error
	DropCache(ctx context.Context, collection string) error
}
