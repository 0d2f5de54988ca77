package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/DocsetAgent/internal/rag/embedding"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const retryDelay = 5 * time.Second

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	logger    *logger_i.Logger
}

func NewEmbedder(ctx context.Context, modelName string, apikey string, dimension int32) (embedding.Embedder, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating google embedding client: %w", err)
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Info("Google Embedding client created", "model", modelName)
	return &client{genAi: c, model: modelName, dimension: dimension, logger: logger}, nil
}

func (c *client) Dimension() uint64 { return uint64(c.dimension) }

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	res, err := c.embed(ctx, genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx)

	res, err := c.embed(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying", "delay", retryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
		res, err = c.embed(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, err
	}
	if len(res) != len(chunks) {
		return nil, fmt.Errorf("google embedding returned %d vectors for %d chunks", len(res), len(chunks))
	}
	return res, nil
}

func (c *client) embed(ctx context.Context, content []*genai.Content, taskType string) ([][]float32, error) {
	result, err := c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("google embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("google embed returned no embeddings")
	}
	out := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(errors.Unwrap(err)); ok && s.Code() == codes.ResourceExhausted {
		log.Error("Rate limit hit! ", "error", err)
		return true
	}
	return false
}
