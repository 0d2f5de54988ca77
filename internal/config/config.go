package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Auth      Auth      `yaml:"auth"`
	Logging   Logging   `yaml:"logging"`
	Catalog   Catalog   `yaml:"catalog"`
	Models    Models    `yaml:"models"`
	Summaries Summaries `yaml:"summaries"`
	Index     Index     `yaml:"index"`
	Reports   Reports   `yaml:"reports"`
	Agent     Agent     `yaml:"agent"`
	Redis     Redis     `yaml:"redis"`
	Workers   Workers   `yaml:"workers"`
	HTTP      HTTP      `yaml:"http"`
}

type Server struct {
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	BurstRateLimit     int     `yaml:"burst_rate_limit"`
}

type Auth struct {
	Token string `yaml:"token"`
	//only for local development
	NoAuthBypass bool `yaml:"no_auth_bypass"`
}

type Logging struct {
	IsProd bool       `yaml:"is_prod"`
	Level  slog.Level `yaml:"level"`
}

// Catalog points at the docset/project/artifact API.
type Catalog struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
	//local directory loader is used instead of the API when set
	LocalDocsDir string `yaml:"local_docs_dir"`
	PageSize     int    `yaml:"page_size"`
	MinChunkSize int    `yaml:"min_chunk_size"`
	MaxChunkSize int    `yaml:"max_chunk_size"`
}

type ModelProvider string

const (
	ProviderOpenAI ModelProvider = "openai"
	ProviderGemini ModelProvider = "gemini"
)

type Models struct {
	Provider ModelProvider `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`

	LargeContextModel string `yaml:"large_context_model"`
	SmallContextModel string `yaml:"small_context_model"`

	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int32  `yaml:"embedding_dimension"`

	OpenAIAPIKey string `yaml:"-"`
	GeminiAPIKey string `yaml:"-"`

	//calls per second across all llm traffic from this process
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

type FailurePolicy string

const (
	SkipAndContinue FailurePolicy = "skip"
	FailFast        FailurePolicy = "fail_fast"
)

type Summaries struct {
	//chunks are indexed as loaded, with no summary tiers
	Disabled                  bool          `yaml:"disabled"`
	MaxFullDocumentTextLength int           `yaml:"max_full_document_text_length"`
	MaxChunkTextLength        int           `yaml:"max_chunk_text_length"`
	MinLengthToSummarize      int           `yaml:"min_length_to_summarize"`
	IncludeXMLTags            bool          `yaml:"include_xml_tags"`
	Workers                   int           `yaml:"workers"`
	FailurePolicy             FailurePolicy `yaml:"failure_policy"`
}

type Index struct {
	QdrantHost      string        `yaml:"qdrant_host"`
	QdrantPort      int           `yaml:"qdrant_port"`
	QdrantUseTLS    bool          `yaml:"qdrant_use_tls"`
	QdrantPoolSize  uint          `yaml:"qdrant_pool_size"`
	QdrantAPIKey    string        `yaml:"-"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	TopK            uint64        `yaml:"top_k"`
	UpsertBatchSize int           `yaml:"upsert_batch_size"`
	AnswerCache     bool          `yaml:"answer_cache"`
}

type Reports struct {
	Directory string `yaml:"directory"`
	//rows pulled back into the answer prompt
	MaxResultRows int `yaml:"max_result_rows"`
}

type Agent struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
}

type Redis struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"-"`
	JobStoreTTL   time.Duration `yaml:"job_store_ttl"`
	MessageTTL    time.Duration `yaml:"message_ttl"`
	FallbackInMem bool          `yaml:"fallback_in_memory"`
}

type Workers struct {
	BufferLimit               int           `yaml:"buffer_limit"`
	RequestsPerNewWorkerCount int64         `yaml:"requests_per_new_worker"`
	MaxWorkerCount            int64         `yaml:"max_workers"`
	MinWorkerCount            int64         `yaml:"min_workers"`
	IdleWorkerTimeout         time.Duration `yaml:"idle_worker_timeout"`
	JobTimeout                time.Duration `yaml:"job_timeout"`
}

type HTTP struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:         ":3000",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        120 * time.Second,
			RateLimitPerSecond: 2,
			BurstRateLimit:     5,
		},
		Logging: Logging{Level: slog.LevelDebug},
		Catalog: Catalog{
			BaseURL:      "https://api.docugami.com/v1preview1",
			PageSize:     100,
			MinChunkSize: 32,
			MaxChunkSize: 1024 * 2,
		},
		Models: Models{
			Provider:           ProviderOpenAI,
			LargeContextModel:  "gpt-4-turbo-preview",
			SmallContextModel:  "gpt-3.5-turbo-1106",
			EmbeddingModel:     "text-embedding-ada-002",
			EmbeddingDimension: 1536,
			RequestsPerSecond:  5,
			CacheTTL:           7 * 24 * time.Hour,
		},
		Summaries: Summaries{
			MaxFullDocumentTextLength: MaxFullDocumentTextLength,
			MaxChunkTextLength:        MaxChunkTextLength,
			MinLengthToSummarize:      MinLengthToSummarize,
			IncludeXMLTags:            false,
			Workers:                   4,
			FailurePolicy:             SkipAndContinue,
		},
		Index: Index{
			QdrantHost:      "localhost",
			QdrantPort:      6334,
			QdrantPoolSize:  1,
			ConnectTimeout:  30 * time.Second,
			TopK:            6,
			UpsertBatchSize: 100,
			AnswerCache:     true,
		},
		Reports: Reports{
			Directory:     "/tmp/docugami/report_dbs",
			MaxResultRows: 50,
		},
		Agent: Agent{
			MaxIterations: 10,
			Timeout:       2 * time.Minute,
		},
		Redis: Redis{
			Addr:          "127.0.0.1:6379",
			JobStoreTTL:   24 * time.Hour,
			MessageTTL:    24 * time.Hour,
			FallbackInMem: true,
		},
		Workers: Workers{
			BufferLimit:               100,
			RequestsPerNewWorkerCount: 10,
			MaxWorkerCount:            10,
			MinWorkerCount:            1,
			IdleWorkerTimeout:         time.Minute,
			JobTimeout:                10 * time.Minute,
		},
		HTTP: HTTP{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 25,
			IdleConnTimeout:     60 * time.Second,
			RequestTimeout:      2 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Summaries.MinLengthToSummarize <= 0 {
		errs = append(errs, errors.New("summaries.min_length_to_summarize must be positive"))
	}
	if c.Summaries.MaxChunkTextLength <= 0 || c.Summaries.MaxFullDocumentTextLength <= 0 {
		errs = append(errs, errors.New("summaries cutoffs must be positive"))
	}
	if c.Summaries.Workers < 1 {
		errs = append(errs, errors.New("summaries.workers must be at least 1"))
	}
	switch c.Summaries.FailurePolicy {
	case SkipAndContinue, FailFast:
	default:
		errs = append(errs, fmt.Errorf("unknown summaries.failure_policy %q", c.Summaries.FailurePolicy))
	}
	switch c.Models.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown models.provider %q", c.Models.Provider))
	}
	if c.Models.EmbeddingDimension <= 0 {
		errs = append(errs, errors.New("models.embedding_dimension must be positive"))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("agent.max_iterations must be at least 1"))
	}
	if c.Agent.Timeout <= 0 {
		errs = append(errs, errors.New("agent.timeout must be positive"))
	}
	if c.Reports.Directory == "" {
		errs = append(errs, errors.New("reports.directory is required"))
	}
	if c.Workers.MinWorkerCount < 1 || c.Workers.MaxWorkerCount < c.Workers.MinWorkerCount {
		errs = append(errs, errors.New("workers: need 1 <= min_workers <= max_workers"))
	}
	return errors.Join(errs...)
}
