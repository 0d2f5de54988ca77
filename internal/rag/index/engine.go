package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
)

// VectorEngine answers over one docset collection. Answers always use the
// shared system message core.
type VectorEngine struct {
	collection string
	b          *Builder
}

func (e *VectorEngine) Collection() string { return e.collection }

// Retrieve returns the k closest records to query, k = 0 means the default.
func (e *VectorEngine) Retrieve(ctx context.Context, query string, k uint64) ([]vectorDB.Hit, error) {
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.search(ctx, vec, k)
}

func (e *VectorEngine) Query(ctx context.Context, question string) (string, error) {
	logger := e.b.logger.WithTrace(ctx).With("collection", e.collection)

	vec, err := e.embed(ctx, question)
	if err != nil {
		return "", err
	}

	if e.b.cache != nil {
		answer, found, err := e.cacheLookup(ctx, vec)
		if err != nil {
			logger.Warn("Answer cache lookup failed", "error", err)
		}
		if found {
			return answer, nil
		}
	}

	hits, err := e.search(ctx, vec, 0)
	if err != nil {
		return "", err
	}

	answer, err := e.synthesize(ctx, question, hits)
	if err != nil {
		return "", err
	}

	if e.b.cache != nil {
		if err := e.b.cache.SaveToCache(ctx, e.collection, vec, answer); err != nil {
			logger.Error("Failed to save to cache", "error", err)
		}
	}
	return answer, nil
}

func (e *VectorEngine) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vec, err := e.b.embedder.GetEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

func (e *VectorEngine) cacheLookup(ctx context.Context, vec []float32) (string, bool, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	return e.b.cache.GetCachedAnswer(ctx, e.collection, vec)
}

func (e *VectorEngine) search(ctx context.Context, vec []float32, k uint64) ([]vectorDB.Hit, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	if k == 0 {
		k = e.b.topK
	}
	hits, err := e.b.store.Search(ctx, e.collection, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (e *VectorEngine) synthesize(ctx context.Context, question string, hits []vectorDB.Hit) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	prompt, err := prompts.Answer.Render(prompts.AnswerParams{Context: FormatHits(hits), Question: question})
	if err != nil {
		return "", err
	}
	answer, err := e.b.model.Complete(ctx, llm.Request{
		System:      prompts.SystemMessageCore,
		User:        prompt,
		Temperature: config.AnswerTemperature,
	})
	if err != nil {
		return "", &docModel.ModelCallError{Model: e.b.model.Model(), Err: err}
	}
	return strings.TrimSpace(answer), nil
}

// FormatHits renders hits as context blocks labelled with their source.
func FormatHits(hits []vectorDB.Hit) string {
	if len(hits) == 0 {
		return "(no matching documents)"
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		source := h.Metadata.Name
		if source == "" {
			source = h.Metadata.Source
		}
		if source == "" {
			source = h.ID
		}
		blocks = append(blocks, fmt.Sprintf("[source: %s]\n%s", source, h.Text))
	}
	return strings.Join(blocks, "\n\n")
}
