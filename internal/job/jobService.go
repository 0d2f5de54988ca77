package job

import (
	"sync/atomic"

	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore

	requestsPerWorker int64
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
	//a new worker is requested every N submitted jobs
	RequestsPerNewWorker int64
}

func InitJobService(cfg ServiceConfig) *Service {
	perWorker := cfg.RequestsPerNewWorker
	if perWorker < 1 {
		perWorker = 1
	}
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		MessageStore:      cfg.MessageStore,
		requestsPerWorker: perWorker,
	}
}

// Submit queues j. The send blocks when the buffer is full, which is the
// back pressure for the HTTP layer. Index builds always ask for a worker of
// their own since they hold one for minutes.
func (s *Service) Submit(j jobModel.Job) {
	metrics.IncrementJobsInQueue()
	s.JobChannel <- j

	count := atomic.AddInt64(&s.RequestCount, 1)
	if count%s.requestsPerWorker == 0 || j.JobType == jobModel.JobTypeBuildIndex {
		metrics.StartDispatcherSignalCount()
		select {
		case s.DispatcherChannel <- true:
		default:
			//dispatcher already has a pending signal
		}
	}
}
