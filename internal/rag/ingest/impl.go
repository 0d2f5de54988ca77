package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/naming"
)

type docType string

const (
	docTypePDF         docType = "pdf"
	docTypeText        docType = "text"
	docTypeUnsupported docType = ""
)

// SplitText cuts text into pieces of at most limit bytes, preferring
// paragraph, line, sentence and word boundaries in that order. Consecutive
// pieces share up to overlap trailing bytes.
func SplitText(text string, limit int, overlap int) []string {
	var chunks []string

	if len(text) <= limit {
		return []string{text}
	}

	separators := []string{"\n\n", "\n", ". ", " "}

	splitChar := ""
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			break
		}
	}

	var parts []string
	if splitChar == "" {
		// no boundary at all, hard cut
		for i := 0; i < len(text); i += limit {
			parts = append(parts, text[i:min(i+limit, len(text))])
		}
		return parts
	}
	parts = strings.Split(text, splitChar)

	var currentChunk strings.Builder
	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

func getDocType(docPath string) docType {
	switch strings.ToLower(filepath.Ext(docPath)) {
	case ".pdf":
		return docTypePDF
	case ".docx", ".odt", ".txt", ".rtf", ".md":
		return docTypeText
	default:
		return docTypeUnsupported
	}
}

func extractText(path string, contentType docType) ([]rawPage, error) {
	switch contentType {
	case docTypePDF:
		return extractPDF(path)
	case docTypeText:
		return extractdocxTxtRtf(path)
	default:
		return nil, fmt.Errorf("unsupported content type for %s", path)
	}
}

// PrepareChunks splits every page of doc. Chunk ids are stable across loads.
func PrepareChunks(pages []rawPage, doc docModel.Document, chunkSize, overlap int) []docModel.Document {
	var allChunks []docModel.Document

	order := 0
	for _, page := range pages {
		for i, text := range SplitText(page.Content, chunkSize, overlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			id := naming.ContentID(fmt.Sprintf("%s/%d/%d", doc.ID, page.Number, i))
			allChunks = append(allChunks, docModel.Document{
				ID:   id,
				Text: text,
				Metadata: docModel.Metadata{
					ID:          id,
					ParentDocID: doc.ID,
					FullDocID:   doc.ID,
					Source:      doc.Metadata.Source,
					Name:        doc.Metadata.Name,
					Page:        page.Number,
					Order:       order,
				},
			})
			order++
		}
	}

	return allChunks
}
