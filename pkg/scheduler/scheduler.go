// Package scheduler runs background jobs on cron schedules inside the
// service process, with per-job timeouts, panic recovery and graceful stop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

const (
	DefaultJobTimeout      = time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron       *cron.Cron
	logger     observability.Logger
	jobTimeout time.Duration

	mu      sync.Mutex
	jobs    map[string]Job
	running bool

	baseCtx    context.Context
	cancelJobs context.CancelFunc
	activeJobs atomic.Int32
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds every job run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// New creates a stopped scheduler. Overlapping runs of the same job are
// skipped rather than queued.
func New(logger observability.Logger, opts ...Option) *Scheduler {
	cronLog := newCronLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		logger:     logger,
		jobTimeout: DefaultJobTimeout,
		jobs:       make(map[string]Job),
		baseCtx:    ctx,
		cancelJobs: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds jobs. Names must be unique and schedules parseable; jobs can
// only be added before Start.
func (s *Scheduler) Register(jobs ...Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}

		name := job.Name()
		if name == "" {
			return &JobError{Job: "<unnamed>", Op: "register", Message: "job name cannot be empty"}
		}
		if _, exists := s.jobs[name]; exists {
			return &JobError{Job: name, Op: "register", Message: "job already registered"}
		}

		if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(name, job) }); err != nil {
			return &JobError{Job: name, Op: "register", Message: "invalid schedule", Err: err}
		}
		s.jobs[name] = job

		s.logger.Info(context.Background(), "job registered",
			observability.String("job", name),
			observability.String("schedule", job.Schedule()),
		)
	}

	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// ActiveJobs returns the number of jobs currently running.
func (s *Scheduler) ActiveJobs() int {
	return int(s.activeJobs.Load())
}

// Start begins firing jobs and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	s.running = true
	s.cron.Start()

	s.logger.Info(ctx, "scheduler started", observability.Int("jobs", len(s.jobs)))
	return nil
}

// Shutdown stops scheduling, cancels running jobs and waits for them to
// return until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	stopped := s.cron.Stop()
	s.cancelJobs()

	select {
	case <-stopped.Done():
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "scheduler shutdown timed out",
			observability.Int("active_jobs", s.ActiveJobs()),
		)
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) runJob(name string, job Job) {
	s.activeJobs.Add(1)
	defer s.activeJobs.Add(-1)

	ctx, cancel := context.WithTimeout(s.baseCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := s.safeRun(ctx, name, job)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error(ctx, "job failed",
			observability.String("job", name),
			observability.Duration("duration", elapsed),
			observability.Error(err),
		)
		return
	}

	s.logger.Debug(ctx, "job completed",
		observability.String("job", name),
		observability.Duration("duration", elapsed),
	)
}

func (s *Scheduler) safeRun(ctx context.Context, name string, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &JobError{Job: name, Op: "run", Message: fmt.Sprintf("job panicked: %v", r)}
		}
	}()
	return job.Run(ctx)
}
