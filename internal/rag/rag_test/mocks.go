package rag_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/reports"
)

// MockSource implements rag.Source
type MockSource struct {
	Docsets []docModel.Docset
	Full    []docModel.Document
	Chunks  []docModel.Document

	OnLoad func(ctx context.Context, docsetID string) ([]docModel.Document, []docModel.Document, error)
}

func (m *MockSource) ListDocsets(ctx context.Context) ([]docModel.Docset, error) {
	return m.Docsets, nil
}

func (m *MockSource) GetDocset(ctx context.Context, id string) (docModel.Docset, error) {
	for _, d := range m.Docsets {
		if d.ID == id {
			return d, nil
		}
	}
	return docModel.Docset{}, &docModel.NotFoundError{Kind: "docset", ID: id}
}

func (m *MockSource) Load(ctx context.Context, docsetID string) ([]docModel.Document, []docModel.Document, error) {
	if m.OnLoad != nil {
		return m.OnLoad(ctx, docsetID)
	}
	return m.Full, m.Chunks, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnComplete func(ctx context.Context, req llm.Request) (string, error)
}

func (m *MockLLM) Model() string { return "mock" }

func (m *MockLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	if m.OnComplete != nil {
		return m.OnComplete(ctx, req)
	}
	return "mocked llm response", nil
}

// MockEmbedder counts a few letters, enough to rank hits.
type MockEmbedder struct{}

func letters(text string) []float32 {
	t := strings.ToLower(text)
	return []float32{
		float32(strings.Count(t, "a")) + 0.1,
		float32(strings.Count(t, "e")) + 0.1,
		float32(strings.Count(t, "o")) + 0.1,
	}
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return letters(query), nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = letters(c)
	}
	return out, nil
}

func (m *MockEmbedder) Dimension() uint64 { return 3 }

// MockDatasets implements rag.DatasetSource
type MockDatasets struct {
	OnGet func(ctx context.Context, docsetID string, mode docModel.IndexMode) (*reports.Dataset, error)
}

func (m *MockDatasets) GetRelationalDataset(ctx context.Context, docsetID string, mode docModel.IndexMode) (*reports.Dataset, error) {
	if m.OnGet != nil {
		return m.OnGet(ctx, docsetID, mode)
	}
	return nil, nil
}

// MockChatModel implements model.ToolCallingChatModel. Without OnGenerate it
// answers straight away.
type MockChatModel struct {
	mu     sync.Mutex
	Inputs [][]*schema.Message

	OnGenerate func(ctx context.Context, n int, input []*schema.Message) (*schema.Message, error)
}

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, input)
	n := len(m.Inputs)
	m.mu.Unlock()
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, n, input)
	}
	return schema.AssistantMessage("mocked agent answer", nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}

// ToolCall asks for tool name with query.
func ToolCall(n int, name, query string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:   fmt.Sprintf("call_%d", n),
		Type: "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: fmt.Sprintf(`{"query":%q}`, query),
		},
	}})
}
