package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit InternalStatus = "Init"
	RedisCall     InternalStatus = "Redis"
	AgentCall     InternalStatus = "Agent"

	BuildInit      InternalStatus = "BuildInit"
	LoadDocuments  InternalStatus = "LoadDocuments"
	SummarizeCall  InternalStatus = "Summarize"
	VectorIndexing InternalStatus = "VectorIndex"
	ReportCall     InternalStatus = "Report"
	AgentAssembly  InternalStatus = "AgentAssembly"

	Error    InternalStatus = "Error"
	Complete InternalStatus = "Complete"

	JobTypeQuery      JobType = "Query"
	JobTypeBuildIndex JobType = "BuildIndex"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	DocsetID string `json:"docset_id,omitempty"`

	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Tools    []string `json:"tools,omitempty"`

	//build index
	Mode      string `json:"mode,omitempty"`
	Documents int    `json:"documents,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Report    string `json:"report,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// MessageStore keeps the question/answer exchanges of a chat.
type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	TrySaveChat(ctx context.Context, id string, exchange JobPayload) error
	InitNewChat(ctx context.Context, id string) error
	// GetMessageHistory returns the newest exchanges, oldest first.
	GetMessageHistory(ctx context.Context, chatId string) ([]JobPayload, error)
}
