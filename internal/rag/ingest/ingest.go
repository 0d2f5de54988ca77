// Package ingest is the local document source: every subdirectory of the
// root is a docset and every supported file in it a document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/naming"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

var logger = logger_i.NewLogger("Document Ingestion")

const (
	defaultChunkSize = 1000 // characters
	defaultOverlap   = 150
)

type DirectorySource struct {
	root      string
	chunkSize int
	overlap   int
}

func NewDirectorySource(root string, chunkSize int) *DirectorySource {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	overlap := defaultOverlap
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &DirectorySource{root: root, chunkSize: chunkSize, overlap: overlap}
}

func (s *DirectorySource) ListDocsets(ctx context.Context) ([]docModel.Docset, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}
	var docsets []docModel.Docset
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			docsets = append(docsets, docModel.Docset{ID: e.Name(), Name: e.Name()})
		}
	}
	return docsets, nil
}

func (s *DirectorySource) GetDocset(ctx context.Context, id string) (docModel.Docset, error) {
	info, err := os.Stat(filepath.Join(s.root, filepath.Base(id)))
	if err != nil || !info.IsDir() {
		return docModel.Docset{}, &docModel.NotFoundError{Kind: "docset", ID: id}
	}
	return docModel.Docset{ID: id, Name: id}, nil
}

// Load returns one full document per file and its chunks. Files that fail to
// extract are logged and skipped.
func (s *DirectorySource) Load(ctx context.Context, docsetID string) ([]docModel.Document, []docModel.Document, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_load", time.Since(start)) }()

	dir := filepath.Join(s.root, filepath.Base(docsetID))
	l := logger.WithTrace(ctx).With("docsetId", docsetID)

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && getDocType(path) != docTypeUnsupported {
			paths = append(paths, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, &docModel.NotFoundError{Kind: "docset", ID: docsetID}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var fullDocs, chunks []docModel.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pages, err := extractText(path, getDocType(path))
		if err != nil {
			l.Error("Error extracting document", "path", path, "error", err)
			continue
		}
		rel, _ := filepath.Rel(dir, path)
		doc := fullDocument(rel, pages)
		if strings.TrimSpace(doc.Text) == "" {
			l.Warn("Document has no text", "path", path)
			continue
		}
		fullDocs = append(fullDocs, doc)
		chunks = append(chunks, PrepareChunks(pages, doc, s.chunkSize, s.overlap)...)
	}
	l.Info("Loaded documents", "documents", len(fullDocs), "chunks", len(chunks))
	return fullDocs, chunks, nil
}

func fullDocument(relPath string, pages []rawPage) docModel.Document {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Content)
	}
	id := naming.ContentID(relPath)
	return docModel.Document{
		ID:   id,
		Text: strings.Join(texts, "\n\n"),
		Metadata: docModel.Metadata{
			ID:     id,
			Source: relPath,
			Name:   filepath.Base(relPath),
		},
	}
}
