package mcpServer

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultTopK = 5
	AskToolName = "ask"
)

type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to look up in the docset"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return"`
}

type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

type SearchResult struct {
	ID       string  `json:"id"`
	Document string  `json:"document,omitempty"`
	Page     int     `json:"page,omitempty"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

type AskInput struct {
	Question string `json:"question" jsonschema:"a question about the docset"`
}

type AskOutput struct {
	Answer string `json:"answer"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        s.ports.Tool.FunctionName,
		Description: s.ports.Tool.Description,
	}, s.handleSearch)

	if s.ports.Agent != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        AskToolName,
			Description: "Answer a question about " + s.ports.Docset.Name + " using its documents and reports",
		}, s.handleAsk)
	}
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query is required")
	}
	k := s.ports.TopK
	if input.Limit > 0 {
		k = uint64(input.Limit)
	}

	hits, err := s.ports.Retriever.Retrieve(ctx, input.Query, k)
	if err != nil {
		s.logger.Error("Retrieval failed", "error", err)
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{Results: make([]SearchResult, len(hits)), Count: len(hits)}
	for i, h := range hits {
		output.Results[i] = SearchResult{
			ID:       h.ID,
			Document: h.Metadata.Name,
			Page:     h.Metadata.Page,
			Score:    h.Score,
			Text:     h.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if input.Question == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}
	answer, err := s.ports.Agent.Run(ctx, input.Question, nil)
	if err != nil {
		s.logger.Warn("Agent run failed", "error", err)
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: answer}, nil
}
