package docModel

import "time"

// Metadata is the fixed record carried by every Document. Summaries copy it
// from their source and overwrite ID and ParentDocID.
type Metadata struct {
	ID          string `json:"id"`
	ParentDocID string `json:"doc_id,omitempty"`
	FullDocID   string `json:"full_doc_id,omitempty"`
	Source      string `json:"source,omitempty"`
	Name        string `json:"name,omitempty"`
	XPath       string `json:"xpath,omitempty"`
	Structure   string `json:"structure,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Page        int    `json:"page,omitempty"`
	Order       int    `json:"order,omitempty"`
}

type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

type SummaryKind string

const (
	// SummaryGenerated text came back from the language model.
	SummaryGenerated SummaryKind = "generated"
	// SummaryVerbatim text is the truncated source content.
	SummaryVerbatim SummaryKind = "verbatim"
)

type Summary struct {
	Document
	Kind SummaryKind `json:"kind"`
}

type Docset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	DocsetID string `json:"docset_id"`
}

type ReportDetails struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
	Table     string `json:"table,omitempty"`
}

type RetrievalToolSpec struct {
	FunctionName string `json:"function_name"`
	Description  string `json:"description"`
}

// LocalIndexState is everything built for one docset in a session. It is
// replaced as a whole on rebuild.
type LocalIndexState struct {
	Docset               Docset             `json:"docset"`
	FullDocSummariesByID map[string]Summary `json:"full_doc_summaries_by_id"`
	ChunksByID           map[string]Summary `json:"chunks_by_id"`
	RetrievalTool        RetrievalToolSpec  `json:"retrieval_tool"`
	Reports              []ReportDetails    `json:"reports"`
	BuiltAt              time.Time          `json:"built_at"`
}

// IndexMode selects between keeping and destroying an existing docset index.
type IndexMode int

const (
	// Create reuses what already exists and upserts on top of it.
	Create IndexMode = iota
	// Recreate deletes the docset's collection and cached reports first.
	Recreate
)

func (m IndexMode) String() string {
	if m == Recreate {
		return "recreate"
	}
	return "create"
}

func ParseIndexMode(s string) (IndexMode, bool) {
	switch s {
	case "", "create":
		return Create, true
	case "recreate":
		return Recreate, true
	default:
		return Create, false
	}
}
