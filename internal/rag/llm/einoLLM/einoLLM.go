// Package einoLLM adapts eino chat models. The agent needs a
// ToolCallingChatModel, and the same model also serves plain completions.
package einoLLM

import (
	"context"
	"errors"
	"fmt"

	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/akolanti/DocsetAgent/internal/rag/llm"
)

type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewChatModel creates an OpenAI-compatible tool calling chat model.
func NewChatModel(ctx context.Context, cfg *ChatModelConfig) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required in config")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required in config")
	}
	return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
}

// NewGeminiChatModel creates a tool calling chat model on the Gemini API.
func NewGeminiChatModel(ctx context.Context, apiKey string, modelName string) (model.ToolCallingChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  modelName,
	})
}

type provider struct {
	chat  model.BaseChatModel
	model string
}

// AsProvider exposes an eino chat model as an llm.Provider.
func AsProvider(chat model.BaseChatModel, modelName string) llm.Provider {
	return &provider{chat: chat, model: modelName}
}

func (p *provider) Model() string { return p.model }

func (p *provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.User))

	out, err := p.chat.Generate(ctx, messages, model.WithTemperature(req.Temperature))
	if err != nil {
		return "", fmt.Errorf("eino generate: %w", err)
	}
	return out.Content, nil
}
