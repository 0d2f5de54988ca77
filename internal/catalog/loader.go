package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/internal/rag/ingest"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const downloadWorkers = 4

// Loader turns the documents of a docset into full documents and chunks.
type Loader struct {
	*Client
	minChunkSize   int
	maxChunkSize   int
	includeXMLTags bool
	logger         *logger_i.Logger
}

func NewLoader(client *Client, cfg config.Catalog, includeXMLTags bool) *Loader {
	return &Loader{
		Client:         client,
		minChunkSize:   cfg.MinChunkSize,
		maxChunkSize:   cfg.MaxChunkSize,
		includeXMLTags: includeXMLTags,
		logger:         logger_i.NewLogger("catalog loader"),
	}
}

func (l *Loader) Load(ctx context.Context, docsetID string) ([]docModel.Document, []docModel.Document, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_load", time.Since(start)) }()

	logger := l.logger.WithTrace(ctx).With("docsetId", docsetID)

	details, err := l.ListDocuments(ctx, docsetID)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Loading documents", "count", len(details))

	type loaded struct {
		full   docModel.Document
		chunks []docModel.Document
	}
	results := make([]loaded, len(details))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)
	var mu sync.Mutex
	skipped := 0

	for i, d := range details {
		g.Go(func() error {
			content, err := l.DocumentXML(gctx, docsetID, d.ID)
			if err != nil {
				return fmt.Errorf("document %s: %w", d.ID, err)
			}
			full, chunks, err := l.toDocuments(d, content)
			if err != nil {
				logger.Warn("Skipping unparseable document", "docId", d.ID, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			results[i] = loaded{full: full, chunks: chunks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var fullDocs, chunks []docModel.Document
	for _, r := range results {
		if r.full.ID == "" {
			continue
		}
		fullDocs = append(fullDocs, r.full)
		chunks = append(chunks, r.chunks...)
	}
	logger.Info("Loaded documents", "documents", len(fullDocs), "chunks", len(chunks), "skipped", skipped)
	return fullDocs, chunks, nil
}

func (l *Loader) toDocuments(d DocumentDetails, content []byte) (docModel.Document, []docModel.Document, error) {
	text, leaves, err := parseDGML(content, l.minChunkSize, l.includeXMLTags)
	if err != nil {
		return docModel.Document{}, nil, &docModel.FormatError{Path: d.Name, Err: err}
	}

	full := docModel.Document{
		ID:   d.ID,
		Text: text,
		Metadata: docModel.Metadata{
			ID:     d.ID,
			Source: d.Name,
			Name:   d.Name,
		},
	}

	var chunks []docModel.Document
	order := 0
	for _, leaf := range leaves {
		parts := []string{leaf.Text}
		if l.maxChunkSize > 0 && len(leaf.Text) > l.maxChunkSize {
			parts = ingest.SplitText(leaf.Text, l.maxChunkSize, 0)
		}
		for i, part := range parts {
			id := naming.ContentID(fmt.Sprintf("%s%s#%d", d.ID, leaf.XPath, i))
			chunks = append(chunks, docModel.Document{
				ID:   id,
				Text: part,
				Metadata: docModel.Metadata{
					ID:          id,
					ParentDocID: d.ID,
					FullDocID:   d.ID,
					Source:      d.Name,
					Name:        d.Name,
					XPath:       leaf.XPath,
					Structure:   leaf.Structure,
					Tag:         leaf.Tag,
					Order:       order,
				},
			})
			order++
		}
	}
	return full, chunks, nil
}
