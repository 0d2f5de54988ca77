package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
)

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected docType
	}{
		{"test.pdf", docTypePDF},
		{"DOC.DOCX", docTypeText},
		{"notes.txt", docTypeText},
		{"image.png", docTypeUnsupported},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestSplitText(t *testing.T) {
	text := "This is a long sentence. This is another sentence that will be split."
	limit := 30
	overlap := 5

	chunks := SplitText(text, limit, overlap)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	lastCharsOfFirst := chunks[0][len(chunks[0])-overlap:]
	if !strings.HasPrefix(chunks[1], lastCharsOfFirst) {
		t.Errorf("second chunk %q does not start with overlap %q", chunks[1], lastCharsOfFirst)
	}
}

func TestSplitText_Short(t *testing.T) {
	chunks := SplitText("short", 30, 5)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestSplitText_NoSeparator(t *testing.T) {
	chunks := SplitText(strings.Repeat("a", 25), 10, 2)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, chunks)
}

func TestPrepareChunks(t *testing.T) {
	pages := []rawPage{
		{Number: 1, Content: "Page one content."},
		{Number: 2, Content: "Page two content."},
	}
	doc := docModel.Document{ID: "doc-1", Metadata: docModel.Metadata{ID: "doc-1", Source: "a/b.pdf", Name: "b.pdf"}}

	chunks := PrepareChunks(pages, doc, 1000, 150)

	require.Len(t, chunks, 2)
	assert.Equal(t, "doc-1", chunks[0].Metadata.ParentDocID)
	assert.Equal(t, "doc-1", chunks[0].Metadata.FullDocID)
	assert.Equal(t, 1, chunks[0].Metadata.Page)
	assert.Equal(t, 1, chunks[1].Metadata.Order)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)

	again := PrepareChunks(pages, doc, 1000, 150)
	assert.Equal(t, chunks[0].ID, again[0].ID)
}

func TestDirectorySource(t *testing.T) {
	root := t.TempDir()
	leases := filepath.Join(root, "leases")
	require.NoError(t, os.MkdirAll(filepath.Join(leases, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(leases, "one.txt"), []byte("The tenant pays 100 per month."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(leases, "nested", "two.txt"), []byte("The landlord fixes the roof."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(leases, "image.png"), []byte{0x89, 0x50}, 0o644))

	src := NewDirectorySource(root, 0)
	ctx := context.Background()

	docsets, err := src.ListDocsets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []docModel.Docset{{ID: "leases", Name: "leases"}}, docsets)

	full, chunks, err := src.Load(ctx, "leases")
	require.NoError(t, err)
	require.Len(t, full, 2)
	require.Len(t, chunks, 2)

	assert.Equal(t, "nested/two.txt", full[0].Metadata.Source)
	assert.Equal(t, "one.txt", full[1].Metadata.Source)
	for _, c := range chunks {
		assert.Contains(t, []string{full[0].ID, full[1].ID}, c.Metadata.FullDocID)
	}

	_, err = src.GetDocset(ctx, "missing")
	var nf *docModel.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, _, err = src.Load(ctx, "missing")
	assert.ErrorAs(t, err, &nf)
}
