package qdrantDB

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadText     = "content"
	payloadRecordID = "record_id"
)

type ClientHolder struct {
	QObj      *qdrant.Client
	dimension uint64
	logger    *logger_i.Logger
}

// NewClient connects to qdrant and checks the connection with a health call.
// The client is closed when ctx is done.
func NewClient(ctx context.Context, cfg config.Index, dimension uint64) (*ClientHolder, error) {
	logger := logger_i.NewLogger("Qdrant")

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.QdrantHost,
		Port:     cfg.QdrantPort,
		APIKey:   cfg.QdrantAPIKey,
		UseTLS:   cfg.QdrantUseTLS,
		PoolSize: cfg.QdrantPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	holder := &ClientHolder{QObj: client, dimension: dimension, logger: logger}
	go holder.closeOnDone(ctx)
	logger.Info("Qdrant client ready", "host", cfg.QdrantHost, "port", cfg.QdrantPort)
	return holder, nil
}

func (db *ClientHolder) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	db.logger.Info("Shutting down Qdrant")
	if err := db.QObj.Close(); err != nil {
		db.logger.Error("could not close Qdrant", "error", err)
		return
	}
	db.logger.Info("Closed Qdrant")
}

// pointID maps our content-hash ids onto the UUIDs qdrant accepts.
// The mapping is deterministic so re-upserting a record replaces it.
func pointID(recordID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewMD5(uuid.NameSpaceOID, []byte(recordID)).String())
}

func (db *ClientHolder) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	return createCollection(ctx, db.QObj, name, dimension)
}

func (db *ClientHolder) DeleteCollection(ctx context.Context, name string) error {
	exists, err := db.QObj.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !exists {
		return nil
	}
	db.logger.WithTrace(ctx).Warn("Deleting collection", "collection", name)
	return db.QObj.DeleteCollection(ctx, name)
}

func (db *ClientHolder) Upsert(ctx context.Context, name string, records []vectorDB.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(toPayload(r)),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) Search(ctx context.Context, name string, vector []float32, limit uint64) ([]vectorDB.Hit, error) {
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		db.logger.WithTrace(ctx).Error("Error querying Qdrant", "collection", name, "error", err)
		return nil, err
	}

	hits := make([]vectorDB.Hit, 0, len(result))
	for _, point := range result {
		hits = append(hits, fromPayload(point.Payload, point.Score))
	}
	return hits, nil
}

func toPayload(r vectorDB.Record) map[string]any {
	m := r.Metadata
	return map[string]any{
		payloadText:     r.Text,
		payloadRecordID: r.ID,
		"id":            m.ID,
		"doc_id":        m.ParentDocID,
		"full_doc_id":   m.FullDocID,
		"source":        m.Source,
		"name":          m.Name,
		"xpath":         m.XPath,
		"structure":     m.Structure,
		"tag":           m.Tag,
		"page":          int64(m.Page),
		"order":         int64(m.Order),
	}
}

func fromPayload(p map[string]*qdrant.Value, score float32) vectorDB.Hit {
	return vectorDB.Hit{
		ID:    p[payloadRecordID].GetStringValue(),
		Text:  p[payloadText].GetStringValue(),
		Score: score,
		Metadata: docModel.Metadata{
			ID:          p["id"].GetStringValue(),
			ParentDocID: p["doc_id"].GetStringValue(),
			FullDocID:   p["full_doc_id"].GetStringValue(),
			Source:      p["source"].GetStringValue(),
			Name:        p["name"].GetStringValue(),
			XPath:       p["xpath"].GetStringValue(),
			Structure:   p["structure"].GetStringValue(),
			Tag:         p["tag"].GetStringValue(),
			Page:        int(p["page"].GetIntegerValue()),
			Order:       int(p["order"].GetIntegerValue()),
		},
	}
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
