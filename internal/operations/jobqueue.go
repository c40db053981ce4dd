package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// JobStatus represents the status of an async job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one queued pipeline run. The job ID doubles as the operation ID so
// websocket snapshots and job lookups share a single identifier.
type Job struct {
	ID          string                 `json:"id"`
	Status      JobStatus              `json:"status"`
	Progress    int                    `json:"progress"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Request     *OperationRequest      `json:"request,omitempty"`
	Result      *OperationResponse     `json:"result,omitempty"`
}

// JobStore persists jobs.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter selects jobs when listing.
type JobFilter struct {
	Status JobStatus
	Since  time.Time
	Limit  int
}

// ErrQueueFull is returned when the queue cannot accept more jobs.
var ErrQueueFull = fmt.Errorf("job queue is full")

// JobQueue runs pipeline operations asynchronously on a fixed worker pool.
type JobQueue struct {
	mu       sync.RWMutex
	jobs     chan *Job
	workers  int
	wg       sync.WaitGroup
	store    JobStore
	manager  *Manager
	logger   *slog.Logger
	shutdown chan struct{}
	active   map[string]*Job
}

// NewJobQueue creates a job queue backed by the given store and manager.
func NewJobQueue(workers int, store JobStore, manager *Manager, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan *Job, workers*2),
		workers:  workers,
		store:    store,
		manager:  manager,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		active:   make(map[string]*Job),
	}
}

// Start launches the worker pool.
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop shuts the queue down, waiting up to timeout for in-flight jobs.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue submits a job. Returns ErrQueueFull when the buffer is exhausted.
func (q *JobQueue) Enqueue(job *Job) error {
	job.Status = JobStatusPending
	job.CreatedAt = time.Now()

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued", slog.String("job_id", job.ID))
		return nil
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		q.store.UpdateJob(job)
		return ErrQueueFull
	}
}

// GetJob retrieves a job by ID, preferring the live in-flight copy.
func (q *JobQueue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	if activeJob, ok := q.active[id]; ok {
		q.mu.RUnlock()
		return activeJob, nil
	}
	q.mu.RUnlock()

	return q.store.GetJob(id)
}

// CancelJob cancels a pending or running job.
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.GetJob(id)
	if err != nil {
		return err
	}

	if job.Status != JobStatusRunning && job.Status != JobStatusPending {
		return fmt.Errorf("job %s cannot be cancelled (status: %s)", id, job.Status)
	}

	if job.Status == JobStatusRunning {
		// Best effort; the operation may have already finished.
		q.manager.CancelOperation(id)
	}

	job.Status = JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now

	return q.store.UpdateJob(job)
}

// ListJobs returns jobs matching the filter.
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob executes a single job through the manager.
func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	logger = logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job started")

	// The queued pointer may be stale after CancelJob; the store has the
	// authoritative status.
	if stored, err := q.store.GetJob(job.ID); err == nil && stored.Status == JobStatusCancelled {
		logger.Info("skipping cancelled job")
		return
	}

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))

			job.Status = JobStatusFailed
			job.Error = fmt.Sprintf("job processing panicked: %v", r)
			job.Message = "Internal error occurred"
			completedAt := time.Now()
			job.CompletedAt = &completedAt

			if err := q.store.UpdateJob(job); err != nil {
				logger.Error("failed to update job after panic", slog.String("error", err.Error()))
			}
			q.manager.Broadcaster().FailOperation(job.ID, fmt.Errorf("%v", r))
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress = 0
	job.Message = "Job started"

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
	}

	req := OperationRequest{ID: job.ID}
	if job.Request != nil {
		req = *job.Request
		req.ID = job.ID
	}

	result, err := q.manager.Execute(ctx, req)
	job.Result = result

	// The stored upload is only needed as pipeline input; the job record
	// keeps the result.
	if req.FilePath != "" {
		if removeErr := os.Remove(req.FilePath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn("failed to remove job input file",
				slog.String("path", req.FilePath),
				slog.String("error", removeErr.Error()))
		}
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.Message = "Job failed"
		logger.Error("job failed", slog.String("error", err.Error()))
	} else {
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = "Job completed successfully"
		logger.Info("processing job completed")
	}

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job completion", slog.String("error", err.Error()))
	}
}

// Stats returns queue statistics.
func (q *JobQueue) Stats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}
