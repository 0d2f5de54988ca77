package mcpServer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/DocsetAgent/internal/agent"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
)

type mockRetriever struct {
	hits []vectorDB.Hit
	err  error
	gotK uint64
	gotQ string
}

func (m *mockRetriever) Retrieve(ctx context.Context, q string, k uint64) ([]vectorDB.Hit, error) {
	m.gotQ, m.gotK = q, k
	return m.hits, m.err
}

type askerFunc func(ctx context.Context, q string, h []agent.Turn) (string, error)

func (f askerFunc) Run(ctx context.Context, q string, h []agent.Turn) (string, error) { return f(ctx, q, h) }

func ports(r Retriever, a Asker) *Ports {
	return &Ports{
		Docset:    docModel.Docset{ID: "ds-1", Name: "Rental Agreements"},
		Tool:      docModel.RetrievalToolSpec{FunctionName: "search_rental_agreements", Description: "Leases."},
		Retriever: r,
		Agent:     a,
	}
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(&Ports{Tool: docModel.RetrievalToolSpec{FunctionName: "search_x"}})
	assert.ErrorIs(t, err, ErrMissingRetriever)

	_, err = NewServer(&Ports{Retriever: &mockRetriever{}})
	assert.ErrorIs(t, err, ErrMissingTool)
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns hits", func(t *testing.T) {
		r := &mockRetriever{hits: []vectorDB.Hit{{
			ID:       "c-1",
			Text:     "Rent is 1200 per month.",
			Metadata: docModel.Metadata{Name: "lease.pdf", Page: 2},
			Score:    0.9,
		}}}
		s, err := NewServer(ports(r, nil))
		require.NoError(t, err)

		_, out, err := s.handleSearch(ctx, nil, SearchInput{Query: "rent"})

		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, SearchResult{ID: "c-1", Document: "lease.pdf", Page: 2, Score: 0.9, Text: "Rent is 1200 per month."}, out.Results[0])
		assert.Equal(t, uint64(defaultTopK), r.gotK)
		assert.Equal(t, "rent", r.gotQ)
	})

	t.Run("limit overrides top k", func(t *testing.T) {
		r := &mockRetriever{}
		s, err := NewServer(ports(r, nil))
		require.NoError(t, err)

		_, out, err := s.handleSearch(ctx, nil, SearchInput{Query: "rent", Limit: 2})

		require.NoError(t, err)
		assert.Equal(t, 0, out.Count)
		assert.Equal(t, uint64(2), r.gotK)
	})

	t.Run("empty query", func(t *testing.T) {
		s, err := NewServer(ports(&mockRetriever{}, nil))
		require.NoError(t, err)
		_, _, err = s.handleSearch(ctx, nil, SearchInput{})
		assert.Error(t, err)
	})

	t.Run("retriever error", func(t *testing.T) {
		s, err := NewServer(ports(&mockRetriever{err: errors.New("qdrant down")}, nil))
		require.NoError(t, err)
		_, _, err = s.handleSearch(ctx, nil, SearchInput{Query: "rent"})
		assert.ErrorContains(t, err, "qdrant down")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()
	var got string
	s, err := NewServer(ports(&mockRetriever{}, askerFunc(func(ctx context.Context, q string, h []agent.Turn) (string, error) {
		got = q
		assert.Empty(t, h)
		return "Alice Doe", nil
	})))
	require.NoError(t, err)

	_, out, err := s.handleAsk(ctx, nil, AskInput{Question: "Who is the tenant?"})

	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", out.Answer)
	assert.Equal(t, "Who is the tenant?", got)

	_, _, err = s.handleAsk(ctx, nil, AskInput{})
	assert.Error(t, err)
}
