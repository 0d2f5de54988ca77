package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client    *genai.Client
	modelName string
	logger    *logger_i.Logger
}

// NewClient builds a Gemini-backed provider. Large and small tiers share one
// genai client, see NewTiers.
func NewClient(ctx context.Context, apiKey string, modelName string) (llm.Provider, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newWithClient(c, modelName), nil
}

func NewTiers(ctx context.Context, apiKey string, large string, small string) (llm.Tiers, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return llm.Tiers{}, fmt.Errorf("creating gemini client: %w", err)
	}
	return llm.Tiers{Large: newWithClient(c, large), Small: newWithClient(c, small)}, nil
}

func newWithClient(c *genai.Client, modelName string) *llmClient {
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini client created", "model", modelName)
	return &llmClient{client: c, modelName: modelName, logger: logger}
}

func (c *llmClient) Model() string { return c.modelName }

func (c *llmClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	log := c.logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(req.User), contentConfig)
	if err != nil {
		log.Error("Gemini generate failed", "error", err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
