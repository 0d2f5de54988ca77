package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/DocsetAgent/internal/api"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
)

func ToInitJobResponse(id string, chatId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		ChatId:    chatId,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(job.Status),
		Step:   string(job.CurrentStep),
	}
	if job.JobType == jobModel.JobTypeBuildIndex {
		result.IndexResponse = ToIndexResponse(job.JobPayload)
	} else {
		result.RAGExternalResponse = ToRAGExternalStatus(job.JobPayload)
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		JobType:   string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" {
		return nil
	}

	return &api.RAGResponse{
		DocsetID: ragData.DocsetID,
		Question: ragData.Question,
		Answer:   ragData.Answer,
		Tools:    ragData.Tools,
	}
}

func ToIndexResponse(p jobModel.JobPayload) *api.IndexResponse {
	if p.ToolName == "" {
		return nil
	}
	return &api.IndexResponse{
		DocsetID:  p.DocsetID,
		Mode:      p.Mode,
		Documents: p.Documents,
		Chunks:    p.Chunks,
		ToolName:  p.ToolName,
		Tools:     p.Tools,
		Report:    p.Report,
	}
}

// ToDocsetList numbers docsets from 1 in the order the catalog returned them.
func ToDocsetList(docsets []docModel.Docset, indexed func(id string) bool) api.DocsetList {
	out := api.DocsetList{Docsets: make([]api.Docset, 0, len(docsets))}
	for i, d := range docsets {
		out.Docsets = append(out.Docsets, api.Docset{
			Index:   i + 1,
			ID:      d.ID,
			Name:    d.Name,
			Indexed: indexed(d.ID),
		})
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		ChatId:    "",
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
