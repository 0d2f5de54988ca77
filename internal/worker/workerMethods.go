package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	jobmodel "github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/rag"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, workerConfig.JobTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeBuildIndex:
		job = _ragService.BuildDocset(ctx, job)
	default:
		job = processQuery(ctx, job, log)
	}

	job.EndTime = time.Now()
	status := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		status = jobmodel.JobStatusError
	}
	metrics.CaptureJobMetrics(string(status), time.Since(start))

	//the job context may be spent, the final state must still land
	saveCtx, saveCancel := context.WithTimeout(ctxTrace, 5*time.Second)
	defer saveCancel()
	saveJobState(saveCtx, job, status)
	log.Info("Job finished", "status", status, "elapsed", time.Since(start))
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

func processQuery(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.RedisCall
	exchanges, err := _jobService.MessageStore.GetMessageHistory(ctx, job.ChatId)
	if err != nil {
		log.Error("Failed to get message history", "err", err)
	}

	job = _ragService.Ask(ctx, job, rag.HistoryTurns(exchanges))
	if job.Status == jobmodel.JobStatusError {
		return job
	}

	exchange := jobmodel.JobPayload{Question: job.JobPayload.Question, Answer: job.JobPayload.Answer}
	if err := _jobService.MessageStore.TrySaveChat(ctx, job.ChatId, exchange); err != nil {
		log.Error("Failed to save chat history", "err", err)
	}
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job status", "jobId", job.Id, "err", err)
	}
}
