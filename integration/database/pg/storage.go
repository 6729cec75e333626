package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pnptv/broadcastq/core/queue"
)

// jobColumns is the canonical column list matching scanJob's field order.
const jobColumns = `id, queue, type, payload, status, attempts, max_attempts,
	last_error, result, scheduled_at, locked_until, locked_by,
	created_at, updated_at, started_at, completed_at`

// JobStorage implements queue.Storage on PostgreSQL. Claiming uses
// FOR UPDATE SKIP LOCKED so multiple worker processes can share one jobs
// table without double-processing.
type JobStorage struct {
	pool *pgxpool.Pool
}

// NewJobStorage creates a Postgres-backed job storage.
func NewJobStorage(pool *pgxpool.Pool) (*JobStorage, error) {
	if pool == nil {
		return nil, queue.ErrRepositoryNil
	}
	return &JobStorage{pool: pool}, nil
}

// CreateJob persists a new job.
func (s *JobStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, queue, type, payload, status, attempts, max_attempts,
			scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Queue, job.Type, job.Payload, job.Status,
		job.Attempts, job.MaxAttempts, job.ScheduledAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return nil
}

// ClaimJobs atomically moves up to limit eligible pending jobs to processing,
// incrementing their attempt counter and setting the worker lock. The inner
// SKIP LOCKED select guarantees each job is claimed by at most one worker.
func (s *JobStorage) ClaimJobs(ctx context.Context, workerID uuid.UUID, queues []string, limit int, lockDuration time.Duration) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		UPDATE jobs SET
			status = 'processing',
			attempts = attempts + 1,
			started_at = now(),
			locked_until = now() + $3,
			locked_by = $4,
			updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'pending'
				AND queue = ANY($1)
				AND scheduled_at <= now()
				AND (locked_until IS NULL OR locked_until < now())
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, jobColumns),
		queues, limit, lockDuration, workerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, queue.ErrNoJobsToClaim
	}

	return jobs, nil
}

// CompleteJob marks a processing job as completed and stores its result.
func (s *JobStorage) CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'completed',
			result = $2,
			completed_at = now(),
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		jobID, result,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", errors.Join(queue.ErrStorageFailure, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
	}

	return nil
}

// FailJob records a failure. With attempts left the job returns to pending
// under a linear backoff delay; at the ceiling it becomes terminally failed.
func (s *JobStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN attempts >= max_attempts
				THEN scheduled_at
				ELSE now() + (attempts * interval '30 seconds') END,
			last_error = $2,
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		jobID, errorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", errors.Join(queue.ErrStorageFailure, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
	}

	return nil
}

// FailJobPermanently fails a job with no further automatic retries by forcing
// the attempt counter to its ceiling.
func (s *JobStorage) FailJobPermanently(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'failed',
			attempts = GREATEST(attempts, max_attempts),
			last_error = $2,
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1`,
		jobID, errorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to permanently fail job: %w", errors.Join(queue.ErrStorageFailure, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
	}

	return nil
}

// GetActiveJobByType finds a pending or processing job by type for scheduler
// idempotency checks. Returns (nil, nil) when no active instance exists.
func (s *JobStorage) GetActiveJobByType(ctx context.Context, jobType string) (*Job, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE type = $1 AND status IN ('pending', 'processing')
		LIMIT 1`, jobColumns),
		jobType,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return job, nil
}

// GetJob returns one job by id.
func (s *JobStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs WHERE id = $1`, jobColumns),
		jobID,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}

	return job, nil
}

// ListJobs returns jobs for one queue, newest first. Empty status matches any.
func (s *JobStorage) ListJobs(ctx context.Context, queueName string, status queue.Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE queue = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`, jobColumns),
		queueName, string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return scanJobs(rows)
}

// CountsByQueue returns per-status job counts for one queue.
func (s *JobStorage) CountsByQueue(ctx context.Context, queueName string) (queue.QueueCounts, error) {
	var counts queue.QueueCounts
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM jobs WHERE queue = $1`,
		queueName,
	).Scan(&counts.Pending, &counts.Processing, &counts.Completed, &counts.Failed)
	if err != nil {
		return queue.QueueCounts{}, fmt.Errorf("failed to count jobs: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return counts, nil
}

// QueueNames returns the distinct queue names currently present in storage.
func (s *JobStorage) QueueNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT queue FROM jobs ORDER BY queue`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", errors.Join(queue.ErrStorageFailure, err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan queue name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// RetryJob reactivates a failed job, preserving its attempt history so the
// job gets exactly one more execution before failing terminally again.
func (s *JobStorage) RetryJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'pending',
			scheduled_at = now(),
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'failed'`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", errors.Join(queue.ErrStorageFailure, err))
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing job from one in a non-retryable state.
		var status string
		err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", queue.ErrJobNotFound, jobID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up job: %w", errors.Join(queue.ErrStorageFailure, err))
		}
		return fmt.Errorf("%w: job %s is %s", queue.ErrJobNotRetryable, jobID, status)
	}

	return nil
}

// DeleteJobsOlderThan removes jobs in the given statuses whose last update is
// older than cutoff. An empty status list defaults to the terminal statuses.
func (s *JobStorage) DeleteJobsOlderThan(ctx context.Context, queueName string, cutoff time.Time, statuses []queue.Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []queue.Status{queue.StatusCompleted, queue.StatusFailed}
	}

	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE queue = $1 AND updated_at < $2 AND status = ANY($3)`,
		queueName, cutoff, statusStrings,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return tag.RowsAffected(), nil
}

// ReleaseExpiredLocks returns processing jobs with expired locks to pending.
// The interrupted execution still counts as an attempt.
func (s *JobStorage) ReleaseExpiredLocks(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'pending',
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE status = 'processing' AND locked_until < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired locks: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return tag.RowsAffected(), nil
}

// ListRetryableFailed returns failed jobs that still have attempts left and
// whose backoff has elapsed as of now.
func (s *JobStorage) ListRetryableFailed(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE status = 'failed'
			AND attempts < max_attempts
			AND updated_at + (attempts * interval '30 seconds') <= $1
		ORDER BY updated_at
		LIMIT $2`, jobColumns),
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable jobs: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return scanJobs(rows)
}

// Job aliases the queue job model; storage adds no fields of its own.
type Job = queue.Job

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID, &job.Queue, &job.Type, &job.Payload, &job.Status,
		&job.Attempts, &job.MaxAttempts, &job.LastError, &job.Result,
		&job.ScheduledAt, &job.LockedUntil, &job.LockedBy,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", errors.Join(queue.ErrStorageFailure, err))
	}

	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}
