package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
)

type mockLLM struct {
	name       string
	mu         sync.Mutex
	requests   []llm.Request
	OnComplete func(req llm.Request) (string, error)
}

func (m *mockLLM) Model() string { return m.name }

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.OnComplete != nil {
		return m.OnComplete(req)
	}
	return m.name + " output", nil
}

func testCfg() config.Summaries {
	return config.Summaries{
		MaxFullDocumentTextLength: 200,
		MaxChunkTextLength:        40,
		MinLengthToSummarize:      30,
		Workers:                   2,
		FailurePolicy:             config.SkipAndContinue,
	}
}

func fixture() ([]docModel.Document, []docModel.Document) {
	full := []docModel.Document{
		{ID: "doc1", Text: "Lease between Acme and Beta", Metadata: docModel.Metadata{ID: "doc1", Name: "lease1.pdf"}},
		{ID: "doc2", Text: strings.Repeat("long lease text ", 10), Metadata: docModel.Metadata{ID: "doc2", Name: "lease2.pdf"}},
	}
	chunks := []docModel.Document{
		{ID: "c1", Text: "Rent is 100", Metadata: docModel.Metadata{ID: "c1", ParentDocID: "doc1", FullDocID: "doc1"}},
		{ID: "c2", Text: strings.Repeat("x", 50), Metadata: docModel.Metadata{ID: "c2", ParentDocID: "doc2", FullDocID: "doc2"}},
	}
	return full, chunks
}

func TestBuildLocalIndexState(t *testing.T) {
	large := &mockLLM{name: "large"}
	small := &mockLLM{name: "small"}
	b := NewBuilder(llm.Tiers{Large: large, Small: small}, testCfg())
	full, chunks := fixture()

	state, err := b.BuildLocalIndexState(context.Background(), docModel.Docset{ID: "ds1", Name: "Lease Agreements"}, full, chunks)
	require.NoError(t, err)

	assert.Equal(t, "search_lease_agreements", state.RetrievalTool.FunctionName)
	assert.Equal(t, "Given a single input 'query' parameter, searches for and returns chunks from Lease Agreements documents. large output", state.RetrievalTool.Description)

	require.Len(t, state.FullDocSummariesByID, 2)
	require.Len(t, state.ChunksByID, 2)

	//doc1 is short and goes to the large model, doc2 is long and stays verbatim
	assert.Equal(t, "large output", state.FullDocSummariesByID["doc1"].Text)
	assert.Equal(t, docModel.SummaryVerbatim, state.FullDocSummariesByID["doc2"].Kind)

	assert.Equal(t, "small output", state.ChunksByID["c1"].Text)
	assert.Equal(t, strings.Repeat("x", 40), state.ChunksByID["c2"].Text)
	assert.Equal(t, "c1", state.ChunksByID["c1"].Metadata.ParentDocID)
	assert.Equal(t, "doc1", state.ChunksByID["c1"].Metadata.FullDocID)

	// tool description + doc1
	assert.Len(t, large.requests, 2)
	assert.Len(t, small.requests, 1)
	assert.False(t, state.BuiltAt.IsZero())
}

func TestBuildLocalIndexState_Disabled(t *testing.T) {
	large := &mockLLM{name: "large"}
	small := &mockLLM{name: "small"}
	cfg := testCfg()
	cfg.Disabled = true
	b := NewBuilder(llm.Tiers{Large: large, Small: small}, cfg)
	full, chunks := fixture()

	state, err := b.BuildLocalIndexState(context.Background(), docModel.Docset{ID: "ds1", Name: "Leases"}, full, chunks)
	require.NoError(t, err)
	assert.Equal(t, "Rent is 100", state.ChunksByID["c1"].Text)
	assert.Len(t, large.requests, 1)
	assert.Empty(t, small.requests)
}

func TestBuildLocalIndexState_OrphanChunk(t *testing.T) {
	b := NewBuilder(llm.Tiers{Large: &mockLLM{name: "large"}, Small: &mockLLM{name: "small"}}, testCfg())
	full, chunks := fixture()
	chunks = append(chunks, docModel.Document{ID: "c3", Text: "stray", Metadata: docModel.Metadata{ID: "c3", FullDocID: "missing"}})

	_, err := b.BuildLocalIndexState(context.Background(), docModel.Docset{ID: "ds1", Name: "Leases"}, full, chunks)
	assert.ErrorIs(t, err, ErrOrphanChunk)
	assert.Contains(t, err.Error(), "c3")
}

func TestBuildToolSpec(t *testing.T) {
	t.Run("samples the first chunks and truncates", func(t *testing.T) {
		large := &mockLLM{name: "large", OnComplete: func(req llm.Request) (string, error) { return "  Leases.\n", nil }}
		cfg := testCfg()
		cfg.MaxChunkTextLength = 1000
		b := NewBuilder(llm.Tiers{Large: large}, cfg)

		var chunks []docModel.Document
		for i := 0; i < 150; i++ {
			chunks = append(chunks, docModel.Document{ID: fmt.Sprint(i), Text: fmt.Sprintf("chunk-%03d", i)})
		}
		spec, err := b.BuildToolSpec(context.Background(), "Leases", chunks)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(spec.Description, "documents. Leases."))

		require.Len(t, large.requests, 1)
		user := large.requests[0].User
		assert.Contains(t, user, "chunk-000")
		assert.Contains(t, user, "chunk-099")
		assert.NotContains(t, user, "chunk-100")
	})

	t.Run("empty name", func(t *testing.T) {
		large := &mockLLM{name: "large"}
		b := NewBuilder(llm.Tiers{Large: large}, testCfg())
		_, err := b.BuildToolSpec(context.Background(), "!!!", nil)
		assert.ErrorIs(t, err, naming.ErrEmptyName)
		assert.Empty(t, large.requests)
	})

	t.Run("model failure", func(t *testing.T) {
		large := &mockLLM{name: "large", OnComplete: func(req llm.Request) (string, error) { return "", errors.New("boom") }}
		b := NewBuilder(llm.Tiers{Large: large}, testCfg())
		_, err := b.BuildToolSpec(context.Background(), "Leases", nil)
		var mce *docModel.ModelCallError
		assert.ErrorAs(t, err, &mce)
	})
}

func TestValidateParents_RawDocs(t *testing.T) {
	state := &docModel.LocalIndexState{
		ChunksByID: map[string]docModel.Summary{
			"c1": {Document: docModel.Document{ID: "c1", Metadata: docModel.Metadata{ParentDocID: "raw1"}}},
		},
	}
	assert.ErrorIs(t, ValidateParents(state, nil), ErrOrphanChunk)
	assert.NoError(t, ValidateParents(state, map[string]struct{}{"raw1": {}}))
}

func TestDocuments(t *testing.T) {
	state := &docModel.LocalIndexState{
		FullDocSummariesByID: map[string]docModel.Summary{"d": {Document: docModel.Document{ID: "b"}}},
		ChunksByID:           map[string]docModel.Summary{"c": {Document: docModel.Document{ID: "a"}}},
	}
	docs := Documents(state)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}
