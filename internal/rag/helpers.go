package rag

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/DocsetAgent/internal/agent"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/rag/index"
	"github.com/akolanti/DocsetAgent/internal/rag/retrieval"
	"github.com/akolanti/DocsetAgent/internal/reports"
	"github.com/akolanti/DocsetAgent/internal/sqlengine"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var (
	ErrNotBuilt    = errors.New("docset has not been indexed yet")
	ErrEmptyDocset = errors.New("docset has no documents")
	ErrBadMode     = errors.New("unknown index mode")
)

func returnOutput(job jobModel.Job, ans string) jobModel.Job {
	job.JobPayload.Answer = ans
	job.CurrentStep = jobModel.Complete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("Job step", "Current Status", job.CurrentStep)
	return job
}

// jobError keeps CurrentStep so the status shows where the job stopped.
func (s *service) jobError(job jobModel.Job, err error) jobModel.Job {
	code, message, retry := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Job failed", "jobId", job.Id, "step", job.CurrentStep, "error", err)
	} else {
		s.logger.Warn("Job rejected", "jobId", job.Id, "step", job.CurrentStep, "error", err)
	}

	job.Error = jobModel.JobError{
		Code:    code,
		Message: message,
		Retry:   retry,
	}
	job.Status = jobModel.JobStatusError
	return job
}

// classify maps an error to what the caller of the API gets to see.
func classify(err error) (int, string, bool) {
	var (
		notFound *docModel.NotFoundError
		budget   *docModel.BudgetExceededError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, err.Error(), false
	case errors.Is(err, ErrNotBuilt):
		return http.StatusConflict, err.Error(), false
	case errors.Is(err, ErrEmptyDocset), errors.Is(err, ErrBadMode):
		return http.StatusUnprocessableEntity, err.Error(), false
	case errors.As(err, &budget):
		if budget.Iterations > 0 {
			return http.StatusUnprocessableEntity, err.Error(), false
		}
		return http.StatusGatewayTimeout, err.Error(), true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Job timed out", true
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Job cancelled", true
	default:
		return http.StatusInternalServerError, "Internal Server Error", true
	}
}

func (s *service) executeLoadStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job) (docModel.Docset, []docModel.Document, []docModel.Document, error) {
	*job = logOutput(*job, jobModel.LoadDocuments, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_load", time.Since(start)) }()

	docset, err := s.deps.Source.GetDocset(ctx, job.JobPayload.DocsetID)
	if err != nil {
		return docset, nil, nil, err
	}
	fullDocs, chunks, err := s.deps.Source.Load(ctx, docset.ID)
	if err != nil {
		return docset, nil, nil, err
	}
	if len(fullDocs) == 0 {
		return docset, nil, nil, ErrEmptyDocset
	}
	log.Info("Loaded docset", "name", docset.Name, "documents", len(fullDocs), "chunks", len(chunks))
	return docset, fullDocs, chunks, nil
}

func (s *service) executeSummarizeStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, docset docModel.Docset, fullDocs, chunks []docModel.Document) (*docModel.LocalIndexState, error) {
	*job = logOutput(*job, jobModel.SummarizeCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("summarization", time.Since(start)) }()

	return s.deps.States.BuildLocalIndexState(ctx, docset, fullDocs, chunks)
}

func (s *service) executeIndexStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, state *docModel.LocalIndexState, mode docModel.IndexMode) (*index.VectorEngine, error) {
	*job = logOutput(*job, jobModel.VectorIndexing, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_index", time.Since(start)) }()

	return s.deps.Indexes.BuildVectorQueryEngine(ctx, retrieval.Documents(state), state.Docset.ID, mode)
}

// executeReportStep never fails the build because of the report itself, the
// docset then gets a vector-only agent. Only cancellation is returned.
func (s *service) executeReportStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, mode docModel.IndexMode) (*sqlengine.Engine, *reports.Dataset, error) {
	if s.deps.Reports == nil {
		return nil, nil, nil
	}
	*job = logOutput(*job, jobModel.ReportCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("report", time.Since(start)) }()

	ds, err := s.deps.Reports.GetRelationalDataset(ctx, job.JobPayload.DocsetID, mode)
	var notFound *docModel.NotFoundError
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case errors.As(err, &notFound):
		log.Info("No report available", "reason", err)
		return nil, nil, nil
	case err != nil:
		log.Warn("Report unavailable, continuing with the vector tool only", "error", err)
		return nil, nil, nil
	case ds == nil:
		log.Info("Docset has no published report")
		return nil, nil, nil
	}

	engine, err := sqlengine.BuildRelationalQueryEngine(ds, s.deps.SQLModel, s.deps.Report)
	if err != nil {
		_ = ds.Close()
		log.Warn("Could not build the report query engine", "error", err)
		return nil, nil, nil
	}
	return engine, ds, nil
}

func (s *service) executeAgentStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, vector *index.VectorEngine, sqlEngine *sqlengine.Engine) (*DocsetRuntime, error) {
	*job = logOutput(*job, jobModel.AgentAssembly, log)

	//a nil *Engine inside the interface would still register the tool
	var relational agent.QueryEngine
	if sqlEngine != nil {
		relational = sqlEngine
	}
	a, err := agent.BuildAgent(ctx, s.deps.Agent, s.deps.ChatModel, vector, relational)
	if err != nil {
		return nil, err
	}
	return &DocsetRuntime{Vector: vector, SQL: sqlEngine, Agent: a}, nil
}

// HistoryTurns flattens stored exchanges into agent turns, oldest first.
func HistoryTurns(exchanges []jobModel.JobPayload) []agent.Turn {
	turns := make([]agent.Turn, 0, 2*len(exchanges))
	for _, e := range exchanges {
		if e.Question == "" || e.Answer == "" {
			continue
		}
		turns = append(turns,
			agent.Turn{Role: agent.RoleUser, Content: e.Question},
			agent.Turn{Role: agent.RoleAssistant, Content: e.Answer},
		)
	}
	return turns
}
