// Package app wires configuration into the services shared by the API server
// and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"golang.org/x/time/rate"

	"github.com/akolanti/DocsetAgent/internal/catalog"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/customHttpClient"
	"github.com/akolanti/DocsetAgent/internal/data/redisStore"
	"github.com/akolanti/DocsetAgent/internal/data/store"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/rag"
	"github.com/akolanti/DocsetAgent/internal/rag/embedding"
	"github.com/akolanti/DocsetAgent/internal/rag/embedding/einoEmbedding"
	"github.com/akolanti/DocsetAgent/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/DocsetAgent/internal/rag/index"
	"github.com/akolanti/DocsetAgent/internal/rag/ingest"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/rag/llm/einoLLM"
	"github.com/akolanti/DocsetAgent/internal/rag/llm/gemini"
	"github.com/akolanti/DocsetAgent/internal/rag/llm/openaiLLM"
	"github.com/akolanti/DocsetAgent/internal/rag/retrieval"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/DocsetAgent/internal/reports"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var logger = logger_i.NewLogger("app")

type App struct {
	Config config.Config
	Rag    rag.Service
}

// New builds the rag service. Connections live until ctx is done.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger = logger_i.NewLogger("app")

	var cache llm.ResponseStore
	if cfg.Models.CacheTTL > 0 {
		if s, err := redisStore.NewStore(ctx, cfg.Redis, config.RedisLLMCache); err != nil {
			logger.Warn("LLM response cache disabled", "error", err)
		} else {
			cache = s
		}
	}

	tiers, err := NewTiers(ctx, cfg.Models, cache)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	chatModel, err := NewChatModel(ctx, cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("agent model: %w", err)
	}
	embedder, err := NewEmbedder(ctx, cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	vectors, answers := newVectorStore(ctx, cfg.Index, embedder.Dimension())

	source, datasets := NewSource(cfg)
	deps := rag.Dependencies{
		Source:    source,
		States:    retrieval.NewBuilder(tiers, cfg.Summaries),
		Indexes:   index.NewBuilder(vectors, answers, embedder, tiers.Large, cfg.Index),
		SQLModel:  tiers.Small,
		ChatModel: chatModel,
		Agent:     cfg.Agent,
		Report:    cfg.Reports,
	}
	//a typed nil would make the service try to load reports
	if datasets != nil {
		deps.Reports = datasets
	}

	ragService, err := rag.NewService(deps)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Rag: ragService}, nil
}

func (a *App) Close() error {
	return a.Rag.Close()
}

// NewSource picks the local directory when one is configured, the catalog
// otherwise. Reports are only published through the catalog.
func NewSource(cfg config.Config) (rag.Source, *reports.Adapter) {
	if cfg.Catalog.LocalDocsDir != "" {
		logger.Info("Reading docsets from local directory", "dir", cfg.Catalog.LocalDocsDir)
		return ingest.NewDirectorySource(cfg.Catalog.LocalDocsDir, cfg.Catalog.MaxChunkSize), nil
	}
	client := catalog.NewClient(cfg.Catalog, customHttpClient.New(cfg.HTTP))
	return catalog.NewLoader(client, cfg.Catalog, cfg.Summaries.IncludeXMLTags), reports.NewAdapter(client, cfg.Reports)
}

// NewTiers builds the large and small providers. Both share one rate limit
// and, when cache is set, one response cache in front of the limit.
func NewTiers(ctx context.Context, cfg config.Models, cache llm.ResponseStore) (llm.Tiers, error) {
	var (
		tiers llm.Tiers
		err   error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		tiers, err = gemini.NewTiers(ctx, cfg.GeminiAPIKey, cfg.LargeContextModel, cfg.SmallContextModel)
	case config.ProviderOpenAI, "":
		tiers.Large, err = openaiLLM.New(openaiLLM.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.BaseURL, Model: cfg.LargeContextModel})
		if err == nil {
			tiers.Small, err = openaiLLM.New(openaiLLM.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.BaseURL, Model: cfg.SmallContextModel})
		}
	default:
		err = fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
	if err != nil {
		return llm.Tiers{}, err
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	wrap := func(p llm.Provider) llm.Provider {
		if limiter != nil {
			p = llm.RateLimited(p, limiter)
		}
		if cache != nil {
			p = llm.Cached(p, cache, cfg.CacheTTL)
		}
		return p
	}
	return llm.Tiers{Large: wrap(tiers.Large), Small: wrap(tiers.Small)}, nil
}

// NewChatModel returns the tool calling model of the agent, on the large tier.
func NewChatModel(ctx context.Context, cfg config.Models) (model.ToolCallingChatModel, error) {
	if cfg.Provider == config.ProviderGemini {
		return einoLLM.NewGeminiChatModel(ctx, cfg.GeminiAPIKey, cfg.LargeContextModel)
	}
	return einoLLM.NewChatModel(ctx, &einoLLM.ChatModelConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.BaseURL, Model: cfg.LargeContextModel})
}

func NewEmbedder(ctx context.Context, cfg config.Models) (embedding.Embedder, error) {
	if cfg.Provider == config.ProviderGemini {
		return googleEmbedding.NewEmbedder(ctx, cfg.EmbeddingModel, cfg.GeminiAPIKey, cfg.EmbeddingDimension)
	}
	return einoEmbedding.NewOpenAIEmbedder(ctx, &einoEmbedding.EmbeddingConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.EmbeddingModel,
		Dimension: uint64(cfg.EmbeddingDimension),
	})
}

// newVectorStore falls back to the in-process store when qdrant is down.
// The answer cache needs qdrant.
func newVectorStore(ctx context.Context, cfg config.Index, dimension uint64) (vectorDB.Store, vectorDB.AnswerCache) {
	holder, err := qdrantDB.NewClient(ctx, cfg, dimension)
	if err != nil {
		logger.Error("Qdrant unavailable, indexes are kept in memory", "error", err)
		return memoryDB.New(), nil
	}
	if !cfg.AnswerCache {
		return holder, nil
	}
	return holder, holder
}

// NewStores returns the redis backed job and message stores, or in-memory
// ones when redis is down and the fallback is allowed.
func NewStores(ctx context.Context, cfg config.Redis) (jobModel.JobStore, jobModel.MessageStore, error) {
	jobs, jobErr := redisStore.NewStore(ctx, cfg, config.RedisJobStore)
	messages, msgErr := redisStore.NewStore(ctx, cfg, config.RedisMessageStore)
	if err := errors.Join(jobErr, msgErr); err != nil {
		if !cfg.FallbackInMem {
			return nil, nil, err
		}
		logger.Error("Redis stores are offline, using in-memory stores", "error", err)
		return store.NewInMemoryJobStore(), store.NewInMemoryMessageStore(config.ChatHistoryLength), nil
	}
	return store.NewRedisJobStore(jobs, cfg.JobStoreTTL),
		store.NewRedisMessageStore(messages, cfg.MessageTTL, config.ChatHistoryLength), nil
}
