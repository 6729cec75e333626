package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pnptv/broadcastq/core/logger"
)

// Service provides a unified management interface for the queue system. It
// orchestrates the enqueuer, worker and scheduler over one storage backend
// and exposes the operator-facing control operations consumed by the admin
// surface. Construct it explicitly and pass it to whatever needs it; there is
// no package-level singleton.
type Service struct {
	storage   Storage
	enqueuer  *Enqueuer
	worker    *Worker
	scheduler *Scheduler
	logger    *slog.Logger

	skipSchedulerIfEmpty bool
}

// NewService creates a queue service with all components sharing the provided
// storage. The enqueuer validates job types against the worker's registered
// handlers, so a bad type string fails at creation time.
func NewService(storage Storage, opts ...ServiceOption) (*Service, error) {
	if storage == nil {
		return nil, ErrRepositoryNil
	}

	s := &Service{
		storage:              storage,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		skipSchedulerIfEmpty: true,
	}

	worker, err := NewWorker(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}
	s.worker = worker

	scheduler, err := NewScheduler(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.scheduler = scheduler

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply service option: %w", err)
		}
	}

	// The enqueuer is built last so its type validator sees the worker chosen
	// by the options.
	if s.enqueuer == nil {
		enqueuer, err := NewEnqueuer(storage, WithTypeValidator(s.worker.HasHandler))
		if err != nil {
			return nil, fmt.Errorf("failed to create enqueuer: %w", err)
		}
		s.enqueuer = enqueuer
	}

	return s, nil
}

// NewServiceFromConfig creates a queue service using configuration values for
// all components. Additional options can override config values.
func NewServiceFromConfig(cfg Config, storage Storage, opts ...ServiceOption) (*Service, error) {
	serviceOpts := append([]ServiceOption{
		WithWorkerOptions(
			WithPollInterval(cfg.PollInterval),
			WithJobTimeout(cfg.JobTimeout),
			WithLockTimeout(cfg.LockTimeout),
			WithShutdownTimeout(cfg.ShutdownTimeout),
			WithConcurrency(cfg.Concurrency),
			WithQueues(cfg.Queues...),
		),
		WithSchedulerOptions(
			WithCheckInterval(cfg.CheckInterval),
			WithSchedulerShutdownTimeout(cfg.ShutdownTimeout),
		),
	}, opts...)

	return NewService(storage, serviceOpts...)
}

// Run starts the worker and scheduler in an error group and blocks until the
// context is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.InfoContext(ctx, "starting queue worker",
			slog.Any("queues", s.worker.Queues()))
		return s.worker.Run(ctx)()
	})

	eg.Go(func() error {
		schedules := s.scheduler.ListSchedules()
		if s.skipSchedulerIfEmpty && len(schedules) == 0 {
			s.logger.InfoContext(ctx, "no schedules registered, scheduler will not start")
			return nil
		}

		s.logger.InfoContext(ctx, "starting queue scheduler",
			slog.Int("schedule_count", len(schedules)))
		return s.scheduler.Run(ctx)()
	})

	return eg.Wait()
}

// Stop gracefully stops the worker and scheduler. Safe to call repeatedly.
func (s *Service) Stop() error {
	s.logger.InfoContext(context.Background(), "stopping queue service")

	return errors.Join(s.scheduler.Stop(), s.worker.Stop())
}

// Worker returns the worker instance for handler registration.
func (s *Service) Worker() *Worker {
	return s.worker
}

// Scheduler returns the scheduler instance for periodic job registration.
func (s *Service) Scheduler() *Scheduler {
	return s.scheduler
}

// Storage returns the underlying storage implementation.
func (s *Service) Storage() Storage {
	return s.storage
}

// RegisterHandler registers a job handler with the worker.
func (s *Service) RegisterHandler(handler Handler) error {
	return s.worker.RegisterHandler(handler)
}

// RegisterHandlers registers multiple job handlers with the worker.
func (s *Service) RegisterHandlers(handlers ...Handler) error {
	return s.worker.RegisterHandlers(handlers...)
}

// AddSchedule registers a periodic job with the scheduler.
func (s *Service) AddSchedule(jobType string, schedule Schedule, opts ...ScheduleOption) error {
	return s.scheduler.AddSchedule(jobType, schedule, opts...)
}

// Enqueue adds a job to the queue.
func (s *Service) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (*Job, error) {
	return s.enqueuer.Enqueue(ctx, jobType, payload, opts...)
}

// EnqueueBatch creates one job per payload, optionally staggered with
// WithDelayPerJob.
func (s *Service) EnqueueBatch(ctx context.Context, jobType string, payloads []any, opts ...EnqueueOption) ([]*Job, error) {
	return s.enqueuer.EnqueueBatch(ctx, jobType, payloads, opts...)
}

// Job returns one job by id.
func (s *Service) Job(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return s.storage.GetJob(ctx, jobID)
}

// JobsByQueue lists jobs for one queue with an optional status filter.
func (s *Service) JobsByQueue(ctx context.Context, queue string, status Status, limit int) ([]*Job, error) {
	return s.storage.ListJobs(ctx, queue, status, limit)
}

// FailedJobs lists failed jobs for one queue.
func (s *Service) FailedJobs(ctx context.Context, queue string, limit int) ([]*Job, error) {
	return s.storage.ListJobs(ctx, queue, StatusFailed, limit)
}

// RetryJob manually reactivates a failed job. Attempts are preserved, so a
// job retried at its ceiling gets exactly one more execution.
func (s *Service) RetryJob(ctx context.Context, jobID uuid.UUID) error {
	if err := s.storage.RetryJob(ctx, jobID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "job manually reactivated",
		logger.JobID(jobID))
	return nil
}

// QueueStatus returns one queue's counts plus the worker's running flag.
func (s *Service) QueueStatus(ctx context.Context, queue string) (QueueStatus, error) {
	counts, err := s.storage.CountsByQueue(ctx, queue)
	if err != nil {
		return QueueStatus{}, err
	}

	return QueueStatus{
		Name:    queue,
		Counts:  counts,
		Running: s.worker.IsRunning(),
	}, nil
}

// AllQueueStatuses returns counts for every queue present in storage.
func (s *Service) AllQueueStatuses(ctx context.Context) ([]QueueStatus, error) {
	queues, err := s.storage.QueueNames(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]QueueStatus, 0, len(queues))
	for _, queue := range queues {
		status, err := s.QueueStatus(ctx, queue)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// Statistics aggregates job counts across all queues.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	statuses, err := s.AllQueueStatuses(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Queues: len(statuses)}
	for _, qs := range statuses {
		stats.Pending += qs.Counts.Pending
		stats.Processing += qs.Counts.Processing
		stats.Completed += qs.Counts.Completed
		stats.Failed += qs.Counts.Failed
	}
	stats.Total = stats.Pending + stats.Processing + stats.Completed + stats.Failed

	return stats, nil
}

// ClearCompletedJobs deletes terminal jobs older than daysOld from one queue
// and returns the deleted count.
func (s *Service) ClearCompletedJobs(ctx context.Context, queue string, daysOld int) (int64, error) {
	if daysOld < 0 {
		daysOld = 0
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)

	return s.storage.DeleteJobsOlderThan(ctx, queue, cutoff, []Status{StatusCompleted, StatusFailed})
}

// IsWorkerRunning reports whether the processing loop is active.
func (s *Service) IsWorkerRunning() bool {
	return s.worker.IsRunning()
}

// ActiveJobs returns the number of in-flight handler executions.
func (s *Service) ActiveJobs() int {
	return s.worker.ActiveJobs()
}

// SetConcurrency adjusts the worker's concurrency limit at runtime.
func (s *Service) SetConcurrency(n int) error {
	return s.worker.SetConcurrency(n)
}

// Healthcheck reports the worker's health; suitable for HTTP health endpoints.
func (s *Service) Healthcheck(ctx context.Context) error {
	return s.worker.Healthcheck(ctx)
}
