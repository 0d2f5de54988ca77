package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file and the
// environment (a .env file in the working directory is read first if present).
// An empty path or a missing file keeps the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	//.env is optional, real environment variables win over it
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Catalog.APIKey, "DOCUGAMI_API_KEY")
	setString(&cfg.Catalog.BaseURL, "DOCUGAMI_API_URL")
	setString(&cfg.Catalog.LocalDocsDir, "LOCAL_DOCS_DIR")

	setString(&cfg.Models.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Models.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.Models.BaseURL, "OPENAI_BASE_URL")
	if p := os.Getenv("MODEL_PROVIDER"); p != "" {
		cfg.Models.Provider = ModelProvider(p)
	}

	setString(&cfg.Index.QdrantHost, "QDRANT_HOST")
	setInt(&cfg.Index.QdrantPort, "QDRANT_PORT")
	setString(&cfg.Index.QdrantAPIKey, "QDRANT_API_KEY")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.Reports.Directory, "REPORT_DIRECTORY")
	setString(&cfg.Auth.Token, "AUTH_TOKEN")
	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")

	if v, err := strconv.ParseBool(os.Getenv("IS_PROD")); err == nil {
		cfg.Logging.IsProd = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = v
	}
}
