package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id,omitempty" example:"chat_550"`
	JobType   string            `json:"job_type,omitempty" example:"Query"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	DocsetID string   `json:"docset_id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tools    []string `json:"tools,omitempty"`
}

type IndexResponse struct {
	DocsetID  string   `json:"docset_id"`
	Mode      string   `json:"mode"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	ToolName  string   `json:"tool_name"`
	Tools     []string `json:"tools"`
	Report    string   `json:"report,omitempty"`
}

type Result struct {
	Status              string         `json:"status"`
	Step                string         `json:"step,omitempty"`
	RAGExternalResponse *RAGResponse   `json:"rag_response,omitempty"`
	IndexResponse       *IndexResponse `json:"index_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

type Docset struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	// Indexed is true once the docset has been built in this process.
	Indexed bool `json:"indexed"`
}

type DocsetList struct {
	Docsets []Docset `json:"docsets"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
}

type IndexRequest struct {
	Mode string `json:"mode,omitempty" example:"recreate"`
}
