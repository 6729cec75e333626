package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for job creation.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// WorkerRepository defines the interface for worker operations.
type WorkerRepository interface {
	// ClaimJobs atomically claims up to limit eligible pending jobs across the
	// given queues, flips them to processing and increments their attempt
	// counter. No two concurrent callers may claim the same job.
	ClaimJobs(ctx context.Context, workerID uuid.UUID, queues []string, limit int, lockDuration time.Duration) ([]*Job, error)

	// CompleteJob marks a processing job as completed and stores its result.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error

	// FailJob records a failure. A job with attempts left goes back to pending
	// with a backoff delay; one at its ceiling becomes terminally failed.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error

	// FailJobPermanently fails a job with no further automatic retries,
	// forcing attempts to the configured ceiling. Used for non-retryable
	// classes such as an unregistered job type.
	FailJobPermanently(ctx context.Context, jobID uuid.UUID, errorMsg string) error
}

// SchedulerRepository defines the interface for scheduler operations.
type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *Job) error

	// GetActiveJobByType returns a pending or processing job with the given
	// type, if any. Used to avoid double-enqueueing periodic jobs while a
	// previous cycle is still unfinished.
	GetActiveJobByType(ctx context.Context, jobType string) (*Job, error)
}

// AdminRepository exposes the inspection and operator-control queries backing
// the admin surface.
type AdminRepository interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// ListJobs returns jobs for one queue, newest first. An empty status
	// matches any status.
	ListJobs(ctx context.Context, queue string, status Status, limit int) ([]*Job, error)

	CountsByQueue(ctx context.Context, queue string) (QueueCounts, error)

	// QueueNames returns the distinct queue names currently present in storage.
	QueueNames(ctx context.Context) ([]string, error)

	// RetryJob reactivates a failed job: status back to pending, immediately
	// eligible, attempt history preserved.
	RetryJob(ctx context.Context, jobID uuid.UUID) error

	// DeleteJobsOlderThan removes jobs in the given statuses whose last
	// update is older than cutoff, returning the number deleted. An empty
	// status list defaults to the terminal statuses.
	DeleteJobsOlderThan(ctx context.Context, queue string, cutoff time.Time, statuses []Status) (int64, error)
}

// MaintenanceRepository backs the periodic retry-scan and cleanup handlers.
type MaintenanceRepository interface {
	// ReleaseExpiredLocks returns processing jobs with expired locks to
	// pending so they can be claimed again after a worker crash.
	ReleaseExpiredLocks(ctx context.Context) (int64, error)

	// ListRetryableFailed returns failed jobs that still have attempts left
	// and whose retry backoff has elapsed as of now.
	ListRetryableFailed(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	RetryJob(ctx context.Context, jobID uuid.UUID) error

	QueueNames(ctx context.Context) ([]string, error)

	DeleteJobsOlderThan(ctx context.Context, queue string, cutoff time.Time, statuses []Status) (int64, error)
}

// Storage is the unified interface combining every repository the queue
// components need. A single implementation of Storage can back the Enqueuer,
// Worker, Scheduler, maintenance handlers and the admin surface.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
	SchedulerRepository
	AdminRepository
	MaintenanceRepository
}
