package openaiLLM

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

func New(cfg Config) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger_i.NewLogger("llm_openai").With("model", cfg.Model),
	}, nil
}

func (c *client) Model() string { return c.model }

func (c *client) Complete(ctx context.Context, req llm.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("openai completion failed", "error", err)
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
