package einoEmbedding

import (
	"context"
	"errors"
	"fmt"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbed "github.com/cloudwego/eino/components/embedding"

	"github.com/akolanti/DocsetAgent/internal/rag/embedding"
)

type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension uint64
}

type embedder struct {
	inner     einoEmbed.Embedder
	dimension uint64
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedder through eino-ext.
func NewOpenAIEmbedder(ctx context.Context, cfg *EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required in config")
	}
	inner, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return Wrap(inner, cfg.Dimension), nil
}

// Wrap adapts any eino embedder, eino works in float64 and qdrant in float32.
func Wrap(inner einoEmbed.Embedder, dimension uint64) embedding.Embedder {
	return &embedder{inner: inner, dimension: dimension}
}

func (e *embedder) Dimension() uint64 { return e.dimension }

func (e *embedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	out, err := e.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *embedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedStrings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("eino embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("eino embed returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		f := make([]float32, len(v))
		for j := range v {
			f[j] = float32(v[j])
		}
		out[i] = f
	}
	return out, nil
}
