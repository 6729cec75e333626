package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// retryScanBatch bounds how many failed jobs one scan cycle reactivates.
const retryScanBatch = 100

// RetryScanResult is the job result of one process_retries execution.
type RetryScanResult struct {
	LocksReleased int64 `json:"locks_released"`
	Reactivated   int   `json:"reactivated"`
}

// RetryScanPayload exists so the retry scan can run through the typed handler
// machinery; the scan takes no parameters.
type RetryScanPayload struct{}

// NewRetryScanHandler returns the process_retries handler. Each run releases
// expired claim locks (crash recovery) and reactivates failed jobs whose
// backoff has elapsed and that still have attempts left. Both passes only
// touch jobs in eligible states, so overlapping or repeated runs are no-ops.
func NewRetryScanHandler(repo MaintenanceRepository, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return NewJobHandler(JobTypeProcessRetries, func(ctx context.Context, _ RetryScanPayload) (any, error) {
		released, err := repo.ReleaseExpiredLocks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to release expired locks: %w", err)
		}
		if released > 0 {
			logger.WarnContext(ctx, "released expired job locks",
				slog.Int64("count", released))
		}

		jobs, err := repo.ListRetryableFailed(ctx, time.Now(), retryScanBatch)
		if err != nil {
			return nil, fmt.Errorf("failed to list retryable jobs: %w", err)
		}

		reactivated := 0
		for _, job := range jobs {
			if err := repo.RetryJob(ctx, job.ID); err != nil {
				// Another scan or an operator may have raced us; skip quietly.
				if errors.Is(err, ErrJobNotRetryable) || errors.Is(err, ErrJobNotFound) {
					continue
				}
				return nil, fmt.Errorf("failed to reactivate job %s: %w", job.ID, err)
			}
			reactivated++

			logger.InfoContext(ctx, "reactivated failed job",
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", job.Type),
				slog.Int("attempts", job.Attempts))
		}

		return RetryScanResult{LocksReleased: released, Reactivated: reactivated}, nil
	})
}

// CleanupPayload carries the retention window for a cleanup_queue job.
type CleanupPayload struct {
	DaysOld int `json:"days_old"`
}

// CleanupResult is the job result of one cleanup_queue execution.
type CleanupResult struct {
	Deleted int64 `json:"deleted"`
	Queues  int   `json:"queues"`
}

// NewCleanupHandler returns the cleanup_queue handler. It purges completed
// and failed jobs older than the retention window across every queue present
// in storage and reports the deleted count as its result.
func NewCleanupHandler(repo MaintenanceRepository, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return NewJobHandler(JobTypeCleanupQueue, func(ctx context.Context, payload CleanupPayload) (any, error) {
		daysOld := payload.DaysOld
		if daysOld <= 0 {
			daysOld = 7
		}
		cutoff := time.Now().AddDate(0, 0, -daysOld)

		queues, err := repo.QueueNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list queues: %w", err)
		}

		var deleted int64
		for _, queue := range queues {
			n, err := repo.DeleteJobsOlderThan(ctx, queue, cutoff, []Status{StatusCompleted, StatusFailed})
			if err != nil {
				return nil, fmt.Errorf("failed to clean queue %q: %w", queue, err)
			}
			deleted += n
		}

		logger.InfoContext(ctx, "queue cleanup completed",
			slog.Int64("deleted", deleted),
			slog.Int("queues", len(queues)),
			slog.Int("days_old", daysOld))

		return CleanupResult{Deleted: deleted, Queues: len(queues)}, nil
	})
}
