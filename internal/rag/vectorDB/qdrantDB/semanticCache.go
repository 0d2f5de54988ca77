package qdrantDB

import (
	"context"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

func cacheCollection(collection string) string {
	return collection + "-answers"
}

func (db *ClientHolder) GetCachedAnswer(ctx context.Context, collection string, queryVector []float32) (string, bool, error) {
	loggr := db.logger.WithTrace(ctx)
	name := cacheCollection(collection)

	exists, err := db.QObj.CollectionExists(ctx, name)
	if err != nil || !exists {
		return "", false, err
	}

	searchResult, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return "", false, err
	}
	if len(searchResult) == 0 || searchResult[0].Score < config.CacheSimilarityCutoff {
		metrics.CaptureCacheLookup("semantic", false)
		return "", false, nil
	}

	loggr.Debug("Found cached answer", "semantic similarity score", searchResult[0].Score)
	metrics.CaptureCacheLookup("semantic", true)
	return searchResult[0].Payload["answer"].GetStringValue(), true, nil
}

func (db *ClientHolder) SaveToCache(ctx context.Context, collection string, queryVector []float32, answer string) error {
	name := cacheCollection(collection)
	if err := createCollection(ctx, db.QObj, name, db.dimension); err != nil {
		return err
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(uuid.New().String()),
				Vectors: qdrant.NewVectors(queryVector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"answer":    answer,
					"timestamp": time.Now().Unix(),
				}),
			},
		},
	})
	if err != nil {
		db.logger.WithTrace(ctx).Error("Saving answer to cache failed", "error", err)
	}
	return err
}

// DropCache removes cached answers, they go stale when the docset is rebuilt.
func (db *ClientHolder) DropCache(ctx context.Context, collection string) error {
	return db.DeleteCollection(ctx, cacheCollection(collection))
}
