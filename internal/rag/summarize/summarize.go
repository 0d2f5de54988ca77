// Package summarize builds the two summary tiers of a docset: one summary per
// full document and one per chunk.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/internal/prompts"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type Options struct {
	// Tier labels logs and metrics, e.g. "full_document" or "chunk".
	Tier         string
	SystemPrompt string
	QueryPrompt  prompts.Template[prompts.SummaryParams]
	Model        llm.Provider

	// Only texts whose truncated length is strictly below this are sent to
	// the model. Longer texts are used verbatim.
	MinLengthToSummarize int
	MaxLengthCutoff      int
	IncludeXMLTags       bool

	Workers int
	Policy  config.FailurePolicy
}

type Result struct {
	// Summaries is keyed by the source document id.
	Summaries  map[string]docModel.Summary
	ModelCalls int
	// Failures lists items that fell back to verbatim text under SkipAndContinue.
	Failures []*docModel.ModelCallError
}

// BuildSummaryMappings summarizes every document in docsByID on a bounded
// worker pool. Completion order does not matter, the result is keyed by id.
func BuildSummaryMappings(ctx context.Context, docsByID map[string]docModel.Document, opts Options) (Result, error) {
	if opts.Model == nil {
		return Result{}, errors.New("summarize: no model configured")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := logger_i.NewLogger("summarize").WithTrace(ctx).With("tier", opts.Tier)
	logger.Info("Building summaries", "documents", len(docsByID), "workers", workers)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("summaries_"+opts.Tier, time.Since(start)) }()

	format := prompts.FormatHint(opts.IncludeXMLTags)

	var (
		mu  sync.Mutex
		res = Result{Summaries: make(map[string]docModel.Summary, len(docsByID))}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for id, doc := range docsByID {
		g.Go(func() error {
			summary, called, err := summarizeOne(gctx, id, doc, format, opts)

			mu.Lock()
			defer mu.Unlock()
			if called {
				res.ModelCalls++
			}
			if err != nil {
				var mce *docModel.ModelCallError
				if opts.Policy == config.FailFast || !errors.As(err, &mce) {
					return err
				}
				logger.Warn("Summary failed, using source text", "docId", id, "error", err)
				metrics.CaptureSummary(opts.Tier, "failed")
				res.Failures = append(res.Failures, mce)
			} else {
				metrics.CaptureSummary(opts.Tier, string(summary.Kind))
			}
			res.Summaries[id] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Building summaries failed", "error", err)
		return Result{}, err
	}
	logger.Info("Built summaries", "count", len(res.Summaries), "modelCalls", res.ModelCalls, "failures", len(res.Failures))
	return res, nil
}

// summarizeOne returns the summary for doc. On a model failure it still
// returns the verbatim summary together with a *ModelCallError.
func summarizeOne(ctx context.Context, id string, doc docModel.Document, format string, opts Options) (docModel.Summary, bool, error) {
	content := truncate(doc.Text, opts.MaxLengthCutoff)

	if len([]rune(content)) >= opts.MinLengthToSummarize {
		return newSummary(id, doc, content, docModel.SummaryVerbatim), false, nil
	}

	if err := ctx.Err(); err != nil {
		return docModel.Summary{}, false, err
	}

	query, err := opts.QueryPrompt.Render(prompts.SummaryParams{Content: content, Format: format})
	if err != nil {
		return docModel.Summary{}, false, err
	}

	text, err := opts.Model.Complete(ctx, llm.Request{
		System:      opts.SystemPrompt,
		User:        query,
		Temperature: config.SummaryTemperature,
	})
	if err != nil {
		mce := &docModel.ModelCallError{DocID: id, Model: opts.Model.Model(), Err: err}
		return newSummary(id, doc, content, docModel.SummaryVerbatim), true, mce
	}
	return newSummary(id, doc, text, docModel.SummaryGenerated), true, nil
}

func newSummary(sourceID string, doc docModel.Document, text string, kind docModel.SummaryKind) docModel.Summary {
	meta := doc.Metadata
	meta.ID = naming.ContentID(text)
	meta.ParentDocID = sourceID
	return docModel.Summary{
		Document: docModel.Document{ID: meta.ID, Text: text, Metadata: meta},
		Kind:     kind,
	}
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func (r Result) String() string {
	return fmt.Sprintf("%d summaries, %d model calls, %d failures", len(r.Summaries), r.ModelCalls, len(r.Failures))
}
