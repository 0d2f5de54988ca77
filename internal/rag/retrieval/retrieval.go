// Package retrieval assembles the per-docset LocalIndexState: the two summary
// tiers and the derived direct retrieval tool.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/rag/summarize"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type Builder struct {
	tiers  llm.Tiers
	cfg    config.Summaries
	logger *logger_i.Logger
}

func NewBuilder(tiers llm.Tiers, cfg config.Summaries) *Builder {
	return &Builder{
		tiers:  tiers,
		cfg:    cfg,
		logger: logger_i.NewLogger("retrieval"),
	}
}

// BuildLocalIndexState builds a fresh state for docset. Chunks must carry the
// id of their full document in Metadata.FullDocID.
func (b *Builder) BuildLocalIndexState(ctx context.Context, docset docModel.Docset, fullDocs, chunks []docModel.Document) (*docModel.LocalIndexState, error) {
	logger := b.logger.WithTrace(ctx).With("docsetId", docset.ID)

	tool, err := b.BuildToolSpec(ctx, docset.Name, chunks)
	if err != nil {
		return nil, err
	}

	state := &docModel.LocalIndexState{
		Docset:        docset,
		RetrievalTool: tool,
		BuiltAt:       time.Now().UTC(),
	}

	if b.cfg.Disabled {
		logger.Info("Summaries disabled, using chunks as loaded")
		state.FullDocSummariesByID = verbatim(fullDocs)
		state.ChunksByID = verbatim(chunks)
		return state, ValidateParents(state, nil)
	}

	full, err := summarize.BuildSummaryMappings(ctx, byID(fullDocs), summarize.Options{
		Tier:                 "full_document",
		SystemPrompt:         prompts.FullDocumentSummarySystem,
		QueryPrompt:          prompts.FullDocumentSummaryQuery,
		Model:                b.tiers.Large,
		MinLengthToSummarize: b.cfg.MinLengthToSummarize,
		MaxLengthCutoff:      b.cfg.MaxFullDocumentTextLength,
		IncludeXMLTags:       b.cfg.IncludeXMLTags,
		Workers:              b.cfg.Workers,
		Policy:               b.cfg.FailurePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("full document summaries: %w", err)
	}

	chunkSummaries, err := summarize.BuildSummaryMappings(ctx, byID(chunks), summarize.Options{
		Tier:                 "chunk",
		SystemPrompt:         prompts.ChunkSummarySystem,
		QueryPrompt:          prompts.ChunkSummaryQuery,
		Model:                b.tiers.Small,
		MinLengthToSummarize: b.cfg.MinLengthToSummarize,
		MaxLengthCutoff:      b.cfg.MaxChunkTextLength,
		IncludeXMLTags:       b.cfg.IncludeXMLTags,
		Workers:              b.cfg.Workers,
		Policy:               b.cfg.FailurePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk summaries: %w", err)
	}

	state.FullDocSummariesByID = full.Summaries
	state.ChunksByID = chunkSummaries.Summaries
	logger.Info("Built local index state", "fullDocs", full.String(), "chunks", chunkSummaries.String())

	return state, ValidateParents(state, nil)
}

// BuildToolSpec derives the direct retrieval tool from the docset name and a
// sample of its first chunks.
func (b *Builder) BuildToolSpec(ctx context.Context, docsetName string, chunks []docModel.Document) (docModel.RetrievalToolSpec, error) {
	fn, err := naming.FunctionName(docsetName)
	if err != nil {
		return docModel.RetrievalToolSpec{}, fmt.Errorf("docset %q: %w", docsetName, err)
	}

	sample := chunks
	if len(sample) > config.ToolDescriptionSampleSize {
		sample = sample[:config.ToolDescriptionSampleSize]
	}
	texts := make([]string, 0, len(sample))
	for _, c := range sample {
		texts = append(texts, c.Text)
	}
	document := truncate(strings.Join(texts, "\n"), b.cfg.MaxChunkTextLength)

	query, err := prompts.ToolDescriptionQuery.Render(prompts.ToolDescriptionParams{DocsetName: docsetName, Document: document})
	if err != nil {
		return docModel.RetrievalToolSpec{}, err
	}
	desc, err := b.tiers.Large.Complete(ctx, llm.Request{
		System:      prompts.ToolDescriptionSystem,
		User:        query,
		Temperature: config.SummaryTemperature,
	})
	if err != nil {
		return docModel.RetrievalToolSpec{}, &docModel.ModelCallError{Model: b.tiers.Large.Model(), Err: err}
	}

	return docModel.RetrievalToolSpec{
		FunctionName: fn,
		Description:  prompts.ToolDescriptionPrefix(docsetName) + strings.TrimSpace(desc),
	}, nil
}

var ErrOrphanChunk = errors.New("chunk has no parent document")

// ValidateParents checks that every chunk traces to a full document summary,
// or to rawDocIDs when summaries were skipped for the docset.
func ValidateParents(state *docModel.LocalIndexState, rawDocIDs map[string]struct{}) error {
	var orphans []string
	for id, chunk := range state.ChunksByID {
		parent := chunk.Metadata.FullDocID
		if parent == "" {
			parent = chunk.Metadata.ParentDocID
		}
		if _, ok := state.FullDocSummariesByID[parent]; ok {
			continue
		}
		if _, ok := rawDocIDs[parent]; ok {
			continue
		}
		orphans = append(orphans, id)
	}
	if len(orphans) == 0 {
		return nil
	}
	sort.Strings(orphans)
	return fmt.Errorf("%w: %s", ErrOrphanChunk, strings.Join(orphans, ", "))
}

// Documents flattens the state into what goes into the vector collection.
func Documents(state *docModel.LocalIndexState) []docModel.Document {
	docs := make([]docModel.Document, 0, len(state.FullDocSummariesByID)+len(state.ChunksByID))
	for _, s := range state.FullDocSummariesByID {
		docs = append(docs, s.Document)
	}
	for _, s := range state.ChunksByID {
		docs = append(docs, s.Document)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func byID(docs []docModel.Document) map[string]docModel.Document {
	m := make(map[string]docModel.Document, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	return m
}

func verbatim(docs []docModel.Document) map[string]docModel.Summary {
	m := make(map[string]docModel.Summary, len(docs))
	for _, d := range docs {
		m[d.ID] = docModel.Summary{Document: d, Kind: docModel.SummaryVerbatim}
	}
	return m
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max])
}
