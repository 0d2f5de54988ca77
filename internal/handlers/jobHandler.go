package handlers

import (
	"context"
	"time"

	"github.com/akolanti/DocsetAgent/internal/api"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/job"
	"github.com/akolanti/DocsetAgent/internal/rag"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service    *job.Service
	ragService rag.Service
}

func InitJobHandler(jobService *job.Service, ragService rag.Service) {
	handlerInstance = &JobHandler{service: jobService, ragService: ragService}
	logJH = logger_i.NewLogger("JobHandler")
	logRH = logger_i.NewLogger("RequestHandler")
	logJH.Info("Starting job handler")
}

func CreateNewJob(newJob newJobData) {
	log := logJH.With("traceId", newJob.traceId, "job id", newJob.id)
	log.Info("To create new job", "type", newJob.jobType)
	if newJob.isNewChat {
		log.Debug("Create new chat", "chatId", newJob.chatId)
		handlerInstance.initNewChat(newJob.chatId, newJob.traceId)
	}
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func ValidateChatRequest(ctx context.Context, chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.Debug("Validating chat id", "chatId", chatReq.ChatID)
	if chatReq.Message == "" {
		return false
	}
	if chatReq.ChatID == "" {
		return true
	}
	return handlerInstance.service.MessageStore.ValidateChatId(ctx, chatReq.ChatID)
}

func isIndexed(docsetID string) bool {
	_, ok := handlerInstance.ragService.Runtime(docsetID)
	return ok
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {
	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		JobType:     newJob.jobType,
	}
	_job.JobPayload.DocsetID = newJob.docsetId

	if newJob.jobType == jobModel.JobTypeBuildIndex {
		_job.CurrentStep = jobModel.BuildInit
		_job.JobPayload.Mode = newJob.mode
	} else {
		_job.ChatId = newJob.chatId
		_job.JobPayload.Question = newJob.message
		_job.CurrentStep = jobModel.UserQueryInit
	}

	//queued state is visible on /status before a worker picks the job up
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, newJob.traceId)
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		logJH.Error("Failed to save queued job", "jobId", _job.Id, "error", err)
	}

	h.service.Submit(_job)
	logJH.Info("Created new job", "jobId", _job.Id)
}

func (h *JobHandler) initNewChat(chatId string, traceId string) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if err := h.service.MessageStore.InitNewChat(ctxC, chatId); err != nil {
		logJH.Error("Error initiating new chat", "chatId", chatId, "error", err)
	}
}
