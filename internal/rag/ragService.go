package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/akolanti/DocsetAgent/internal/agent"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/data/keylock"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/internal/rag/index"
	"github.com/akolanti/DocsetAgent/internal/rag/llm"
	"github.com/akolanti/DocsetAgent/internal/rag/retrieval"
	"github.com/akolanti/DocsetAgent/internal/reports"
	"github.com/akolanti/DocsetAgent/internal/sqlengine"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

/*
The worker, the CLI and the MCP server only see Service. The private service
struct holds the builders and model clients, and the runtimes built so far.
A runtime is swapped as a whole when a docset is rebuilt.
*/

// Service Worker will only call this service - it doesn't need to know the llm or the vector
type Service interface {
	ListDocsets(ctx context.Context) ([]docModel.Docset, error)
	// Build indexes a docset and assembles its agent.
	Build(ctx context.Context, docsetID string, mode docModel.IndexMode) (*DocsetRuntime, error)
	// Runtime returns the current runtime. Its report handle is closed after
	// the docset is rebuilt, Ask holds it open for the duration of the call.
	Runtime(docsetID string) (*DocsetRuntime, bool)

	BuildDocset(ctx context.Context, job jobModel.Job) jobModel.Job
	Ask(ctx context.Context, job jobModel.Job, history []agent.Turn) jobModel.Job

	Close() error
}

// Source lists docsets and loads their documents, the catalog loader and the
// local directory loader both satisfy it.
type Source interface {
	ListDocsets(ctx context.Context) ([]docModel.Docset, error)
	GetDocset(ctx context.Context, id string) (docModel.Docset, error)
	Load(ctx context.Context, docsetID string) ([]docModel.Document, []docModel.Document, error)
}

type DatasetSource interface {
	GetRelationalDataset(ctx context.Context, docsetID string, mode docModel.IndexMode) (*reports.Dataset, error)
}

type Dependencies struct {
	Source  Source
	States  *retrieval.Builder
	Indexes *index.Builder
	// Reports is optional, without it every agent is vector-only.
	Reports   DatasetSource
	SQLModel  llm.Provider
	ChatModel model.ToolCallingChatModel
	Agent     config.Agent
	Report    config.Reports
}

// DocsetRuntime is everything built for one docset.
type DocsetRuntime struct {
	State  *docModel.LocalIndexState
	Vector *index.VectorEngine
	// SQL is nil when the docset has no usable report.
	SQL   *sqlengine.Engine
	Agent *agent.Agent

	dataset  *reports.Dataset
	inflight sync.WaitGroup
}

func (r *DocsetRuntime) close() error {
	if r == nil {
		return nil
	}
	return r.dataset.Close()
}

type service struct {
	deps   Dependencies
	locks  *keylock.Locks
	logger *logger_i.Logger

	mu       sync.RWMutex
	runtimes map[string]*DocsetRuntime
	retiring sync.WaitGroup
}

func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("rag: no document source")
	case deps.States == nil || deps.Indexes == nil:
		return nil, errors.New("rag: state and index builders are required")
	case deps.ChatModel == nil:
		return nil, errors.New("rag: no chat model for the agent")
	case deps.Reports != nil && deps.SQLModel == nil:
		return nil, errors.New("rag: reports need a model for query generation")
	}
	return &service{
		deps:     deps,
		locks:    keylock.New(),
		logger:   logger_i.NewLogger("RAG Service"),
		runtimes: make(map[string]*DocsetRuntime),
	}, nil
}

func (s *service) ListDocsets(ctx context.Context) ([]docModel.Docset, error) {
	return s.deps.Source.ListDocsets(ctx)
}

func (s *service) Runtime(docsetID string) (*DocsetRuntime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.runtimes[docsetID]
	return rt, ok
}

func (s *service) Build(ctx context.Context, docsetID string, mode docModel.IndexMode) (*DocsetRuntime, error) {
	job := jobModel.Job{JobPayload: jobModel.JobPayload{DocsetID: docsetID}}
	return s.build(ctx, &job, mode)
}

func (s *service) BuildDocset(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("docset_build", time.Since(start)) }()

	mode, ok := docModel.ParseIndexMode(job.JobPayload.Mode)
	if !ok {
		return s.jobError(job, fmt.Errorf("%w: %q", ErrBadMode, job.JobPayload.Mode))
	}

	rt, err := s.build(ctx, &job, mode)
	if err != nil {
		return s.jobError(job, err)
	}

	job.JobPayload.Mode = mode.String()
	job.JobPayload.Documents = len(rt.State.FullDocSummariesByID)
	job.JobPayload.Chunks = len(rt.State.ChunksByID)
	job.JobPayload.ToolName = rt.State.RetrievalTool.FunctionName
	job.JobPayload.Tools = rt.Agent.Tools()
	if rt.SQL != nil {
		job.JobPayload.Report = rt.SQL.Table()
	}
	job.CurrentStep = jobModel.Complete
	return job
}

func (s *service) Ask(ctx context.Context, job jobModel.Job, history []agent.Turn) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("JobId", job.Id, "docsetId", job.JobPayload.DocsetID)

	rt, release, ok := s.acquire(job.JobPayload.DocsetID)
	if !ok {
		return s.jobError(job, ErrNotBuilt)
	}
	defer release()

	job = logOutput(job, jobModel.AgentCall, log)
	answer, err := rt.Agent.Run(ctx, job.JobPayload.Question, history)
	if err != nil {
		return s.jobError(job, err)
	}

	job.JobPayload.Tools = rt.Agent.Tools()
	return returnOutput(job, answer)
}

// build runs the pipeline for one docset. Builds of the same docset are
// serialized; the new runtime replaces the old one only once it is complete.
func (s *service) build(ctx context.Context, job *jobModel.Job, mode docModel.IndexMode) (*DocsetRuntime, error) {
	docsetID := job.JobPayload.DocsetID
	log := s.logger.WithTrace(ctx).With("docsetId", docsetID, "mode", mode.String())

	unlock := s.locks.Lock(docsetID)
	defer unlock()

	docset, fullDocs, chunks, err := s.executeLoadStep(ctx, log, job)
	if err != nil {
		return nil, err
	}

	state, err := s.executeSummarizeStep(ctx, log, job, docset, fullDocs, chunks)
	if err != nil {
		return nil, err
	}

	vector, err := s.executeIndexStep(ctx, log, job, state, mode)
	if err != nil {
		return nil, err
	}

	sqlEngine, dataset, err := s.executeReportStep(ctx, log, job, mode)
	if err != nil {
		return nil, err
	}
	if dataset != nil {
		state.Reports = append(state.Reports, dataset.Report)
	}

	rt, err := s.executeAgentStep(ctx, log, job, vector, sqlEngine)
	if err != nil {
		_ = dataset.Close()
		return nil, err
	}
	rt.State = state
	rt.dataset = dataset

	s.mu.Lock()
	old := s.runtimes[docsetID]
	s.runtimes[docsetID] = rt
	s.mu.Unlock()

	if old != nil {
		s.retire(old, log)
	}

	log.Info("Docset ready", "documents", len(state.FullDocSummariesByID), "chunks", len(state.ChunksByID), "tools", rt.Agent.Tools())
	return rt, nil
}

// acquire returns the current runtime of a docset and keeps it open until
// release is called.
func (s *service) acquire(docsetID string) (*DocsetRuntime, func(), bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.runtimes[docsetID]
	if !ok {
		return nil, nil, false
	}
	rt.inflight.Add(1)
	return rt, rt.inflight.Done, true
}

// retire closes a replaced runtime once the asks still using it are done.
// rt must already be out of the runtimes map.
func (s *service) retire(rt *DocsetRuntime, log *logger_i.Logger) {
	s.retiring.Add(1)
	go func() {
		defer s.retiring.Done()
		rt.inflight.Wait()
		if err := rt.close(); err != nil {
			log.Warn("Failed to close previous report", "error", err)
		}
	}()
}

func (s *service) Close() error {
	s.mu.Lock()
	current := s.runtimes
	s.runtimes = make(map[string]*DocsetRuntime)
	s.mu.Unlock()

	s.retiring.Wait()
	var errs []error
	for _, rt := range current {
		rt.inflight.Wait()
		errs = append(errs, rt.close())
	}
	return errors.Join(errs...)
}
