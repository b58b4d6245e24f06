// Package scheduler runs maintenance jobs (seeding, purges, data repair) on
// a small worker pool, with retries and an in-memory history that the admin
// API polls.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrJobQueueFull        = errors.New("scheduler: job queue is full")
	ErrJobNotFound         = errors.New("scheduler: job not found")
	// ErrJobInProgress rejects a second seed or purge while one of the same
	// kind is still pending or running
	ErrJobInProgress = errors.New("scheduler: a job of this kind is already in progress")
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one run of a named maintenance task. The scheduler hands the
// executor a pointer; everyone else sees copies taken from the history.
type Job struct {
	ID          uuid.UUID
	Kind        string
	Params      map[string]string
	Status      JobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

func newJob(kind string, params map[string]string, maxRetries int) *Job {
	if params == nil {
		params = map[string]string{}
	}
	return &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Params:      params,
		Status:      JobStatusPending,
		SubmittedAt: time.Now(),
		MaxRetries:  max(maxRetries, 0),
	}
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

func (j *Job) start(now time.Time) {
	j.Status, j.Error, j.StartedAt, j.NextRetryAt = JobStatusRunning, "", &now, nil
}

func (j *Job) finish(now time.Time, err error) {
	j.CompletedAt = &now
	if err != nil {
		j.Status, j.Error = JobStatusFailed, err.Error()
		return
	}
	j.Status = JobStatusSuccess
}

// retryAt puts a failed job back to pending, or reports false once its
// retries are used up
func (j *Job) retryAt(at time.Time) bool {
	if j.Status != JobStatusFailed || j.RetryCount >= j.MaxRetries {
		return false
	}
	j.RetryCount++
	j.Status, j.CompletedAt, j.NextRetryAt = JobStatusPending, nil, &at
	return true
}

// JobExecutor runs a job. It should return promptly once ctx is done.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to JobExecutor
type ExecutorFunc func(ctx context.Context, job *Job) error

func (f ExecutorFunc) Execute(ctx context.Context, job *Job) error { return f(ctx, job) }

// Config sizes the pool. Zero fields take the DefaultConfig value, except
// RetryAttempts and RetryDelay where zero means none.
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
	// HistorySize bounds how many jobs are kept for lookup
	HistorySize int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
		QueueSize:         100,
		HistorySize:       200,
	}
}

// Scheduler runs maintenance jobs on a bounded worker pool. Failed jobs are
// re-queued after RetryDelay without holding a worker while they wait.
type Scheduler struct {
	cfg      Config
	executor JobExecutor
	logger   *zap.Logger

	queue chan *Job

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	history map[uuid.UUID]Job
	order   []uuid.UUID
}

func NewScheduler(cfg Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		executor: executor,
		logger:   logger.Named("scheduler"),
		queue:    make(chan *Job, cfg.QueueSize),
		history:  make(map[uuid.UUID]Job),
	}
}

// Start launches the workers. Calling it on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for i := range s.cfg.MaxConcurrentJobs {
		s.workers.Add(1)
		go s.work(i)
	}
	s.logger.Info("Job scheduler started",
		zap.Int("workers", s.cfg.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.cfg.JobTimeout))
	return nil
}

// Stop cancels running jobs and waits for the workers or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Job scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job of kind. Only one job per kind may be pending or
// running at a time.
func (s *Scheduler) Submit(kind string, params map[string]string) (*Job, error) {
	job := newJob(kind, params, s.cfg.RetryAttempts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrSchedulerNotRunning
	}
	for _, id := range s.order {
		if prev := s.history[id]; prev.Kind == kind && prev.active() {
			return nil, ErrJobInProgress
		}
	}
	select {
	case s.queue <- job:
	default:
		return nil, ErrJobQueueFull
	}
	s.saveLocked(job)
	s.logger.Debug("Job submitted", zap.String("job_id", job.ID.String()), zap.String("kind", kind))
	return job, nil
}

// Job returns a snapshot of a submitted job
func (s *Scheduler) Job(id uuid.UUID) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.history[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

func (s *Scheduler) save(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(job)
}

func (s *Scheduler) saveLocked(job *Job) {
	if _, seen := s.history[job.ID]; !seen {
		s.order = append(s.order, job.ID)
		if len(s.order) > s.cfg.HistorySize {
			delete(s.history, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.history[job.ID] = *job
}

func (s *Scheduler) work(worker int) {
	defer s.workers.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.queue:
			s.run(job, worker)
		}
	}
}

func (s *Scheduler) run(job *Job, worker int) {
	log := s.logger.With(zap.String("job_id", job.ID.String()), zap.String("kind", job.Kind))

	job.start(time.Now())
	s.save(job)
	log.Info("Processing job", zap.Int("worker_id", worker), zap.Int("attempt", job.RetryCount+1))

	err := s.execute(job)
	job.finish(time.Now(), err)
	if err == nil {
		s.save(job)
		log.Info("Job completed", zap.Duration("took", job.CompletedAt.Sub(*job.StartedAt)))
		return
	}

	log.Error("Job failed", zap.Int("retry_count", job.RetryCount), zap.Error(err))
	if s.ctx.Err() == nil && job.retryAt(time.Now().Add(s.cfg.RetryDelay)) {
		s.save(job)
		time.AfterFunc(s.cfg.RetryDelay, func() { s.requeue(job) })
		return
	}
	s.save(job)
}

// execute runs the executor under the job timeout and turns a panic into
// an error
func (s *Scheduler) execute(job *Job) (err error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.executor.Execute(ctx, job)
}

func (s *Scheduler) requeue(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case s.queue <- job:
	default:
		job.finish(time.Now(), fmt.Errorf("retry dropped: %w", ErrJobQueueFull))
		s.saveLocked(job)
		s.logger.Warn("Failed to re-queue job for retry", zap.String("job_id", job.ID.String()))
	}
}
