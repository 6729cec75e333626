package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the full Storage interface in memory, for tests
// and local development. Production uses the Postgres implementation.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	// Indexes for efficient queries
	byQueue  map[string][]uuid.UUID
	byStatus map[Status][]uuid.UUID
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:     make(map[uuid.UUID]*Job),
		byQueue:  make(map[string][]uuid.UUID),
		byStatus: make(map[Status][]uuid.UUID),
	}
}

// CreateJob stores a new pending job.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy

	ms.byQueue[job.Queue] = append(ms.byQueue[job.Queue], job.ID)
	ms.byStatus[job.Status] = append(ms.byStatus[job.Status], job.ID)

	return nil
}

// ClaimJobs atomically claims up to limit eligible pending jobs,
// oldest-eligible first, and increments their attempt counter.
func (ms *MemoryStorage) ClaimJobs(ctx context.Context, workerID uuid.UUID, queues []string, limit int, lockDuration time.Duration) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()

	var eligible []*Job
	for _, jobID := range ms.byStatus[StatusPending] {
		job := ms.jobs[jobID]

		if !slices.Contains(queues, job.Queue) {
			continue
		}
		if job.ScheduledAt.After(now) {
			continue
		}
		// Defensive: skip jobs with an unexpired lock left over from a
		// crashed claim.
		if job.LockedUntil != nil && job.LockedUntil.After(now) {
			continue
		}

		eligible = append(eligible, job)
	}

	if len(eligible) == 0 {
		return nil, ErrNoJobsToClaim
	}

	// Oldest-eligible first is a tie-break, not a hard ordering guarantee.
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ScheduledAt.Before(eligible[j].ScheduledAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]*Job, 0, len(eligible))
	for _, job := range eligible {
		lockUntil := now.Add(lockDuration)
		job.Status = StatusProcessing
		job.Attempts++
		job.StartedAt = &now
		job.LockedUntil = &lockUntil
		job.LockedBy = &workerID
		job.UpdatedAt = now

		ms.removeFromStatusIndex(job.ID, StatusPending)
		ms.byStatus[StatusProcessing] = append(ms.byStatus[StatusProcessing], job.ID)

		jobCopy := *job
		claimed = append(claimed, &jobCopy)
	}

	return claimed, nil
}

// CompleteJob marks a processing job as completed and stores its result.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusProcessing {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.Result = result
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.LockedUntil = nil
	job.LockedBy = nil

	ms.removeFromStatusIndex(jobID, StatusProcessing)
	ms.byStatus[StatusCompleted] = append(ms.byStatus[StatusCompleted], jobID)

	return nil
}

// FailJob records a failure. With attempts left the job returns to pending
// under a backoff delay; at the ceiling it becomes terminally failed.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusProcessing {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}

	now := time.Now()
	job.LastError = &errorMsg
	job.LockedUntil = nil
	job.LockedBy = nil
	job.UpdatedAt = now

	ms.removeFromStatusIndex(jobID, StatusProcessing)

	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		ms.byStatus[StatusFailed] = append(ms.byStatus[StatusFailed], jobID)
	} else {
		job.Status = StatusPending
		job.ScheduledAt = now.Add(RetryBackoff(job.Attempts))
		ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], jobID)
	}

	return nil
}

// FailJobPermanently fails a job with no further automatic retries.
func (ms *MemoryStorage) FailJobPermanently(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	now := time.Now()
	job.LastError = &errorMsg
	if job.Attempts < job.MaxAttempts {
		job.Attempts = job.MaxAttempts
	}
	job.LockedUntil = nil
	job.LockedBy = nil
	job.UpdatedAt = now

	ms.removeFromStatusIndex(jobID, job.Status)
	job.Status = StatusFailed
	ms.byStatus[StatusFailed] = append(ms.byStatus[StatusFailed], jobID)

	return nil
}

// GetActiveJobByType finds a pending or processing job by type for scheduler
// idempotency checks.
func (ms *MemoryStorage) GetActiveJobByType(ctx context.Context, jobType string) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, status := range []Status{StatusPending, StatusProcessing} {
		for _, jobID := range ms.byStatus[status] {
			job := ms.jobs[jobID]
			if job.Type == jobType {
				jobCopy := *job
				return &jobCopy, nil
			}
		}
	}

	return nil, nil
}

// GetJob returns one job by id.
func (ms *MemoryStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns jobs for one queue, newest first. Empty status matches any.
func (ms *MemoryStorage) ListJobs(ctx context.Context, queue string, status Status, limit int) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var jobs []*Job
	for _, jobID := range ms.byQueue[queue] {
		job := ms.jobs[jobID]
		if status != "" && job.Status != status {
			continue
		}
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	return jobs, nil
}

// CountsByQueue returns per-status job counts for one queue.
func (ms *MemoryStorage) CountsByQueue(ctx context.Context, queue string) (QueueCounts, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var counts QueueCounts
	for _, jobID := range ms.byQueue[queue] {
		switch ms.jobs[jobID].Status {
		case StatusPending:
			counts.Pending++
		case StatusProcessing:
			counts.Processing++
		case StatusCompleted:
			counts.Completed++
		case StatusFailed:
			counts.Failed++
		}
	}

	return counts, nil
}

// QueueNames returns the distinct queue names currently present in storage.
func (ms *MemoryStorage) QueueNames(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	names := make([]string, 0, len(ms.byQueue))
	for name, ids := range ms.byQueue {
		if len(ids) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

// RetryJob reactivates a failed job. The attempt history is preserved: a job
// retried at its ceiling gets exactly one more execution before it fails
// terminally again.
func (ms *MemoryStorage) RetryJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusFailed {
		return fmt.Errorf("%w: job %s is %s", ErrJobNotRetryable, jobID, job.Status)
	}

	now := time.Now()
	job.Status = StatusPending
	job.ScheduledAt = now
	job.UpdatedAt = now
	job.LockedUntil = nil
	job.LockedBy = nil

	ms.removeFromStatusIndex(jobID, StatusFailed)
	ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], jobID)

	return nil
}

// DeleteJobsOlderThan removes jobs in the given statuses whose last update is
// older than cutoff. An empty status list defaults to the terminal statuses.
func (ms *MemoryStorage) DeleteJobsOlderThan(ctx context.Context, queue string, cutoff time.Time, statuses []Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusCompleted, StatusFailed}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var deleted int64
	for _, jobID := range slices.Clone(ms.byQueue[queue]) {
		job := ms.jobs[jobID]
		if !slices.Contains(statuses, job.Status) {
			continue
		}
		if !job.UpdatedAt.Before(cutoff) {
			continue
		}

		ms.removeFromStatusIndex(jobID, job.Status)
		ms.removeFromQueueIndex(jobID, job.Queue)
		delete(ms.jobs, jobID)
		deleted++
	}

	return deleted, nil
}

// ReleaseExpiredLocks returns processing jobs with expired locks to pending.
// The interrupted execution still counts as an attempt.
func (ms *MemoryStorage) ReleaseExpiredLocks(ctx context.Context) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var released int64
	for _, jobID := range slices.Clone(ms.byStatus[StatusProcessing]) {
		job := ms.jobs[jobID]
		if job.LockedUntil == nil || !job.LockedUntil.Before(now) {
			continue
		}

		job.Status = StatusPending
		job.LockedUntil = nil
		job.LockedBy = nil
		job.UpdatedAt = now

		ms.removeFromStatusIndex(jobID, StatusProcessing)
		ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], jobID)
		released++
	}

	return released, nil
}

// ListRetryableFailed returns failed jobs that still have attempts left and
// whose backoff has elapsed as of now.
func (ms *MemoryStorage) ListRetryableFailed(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var jobs []*Job
	for _, jobID := range ms.byStatus[StatusFailed] {
		job := ms.jobs[jobID]
		if job.Attempts >= job.MaxAttempts {
			continue
		}
		if job.UpdatedAt.Add(RetryBackoff(job.Attempts)).After(now) {
			continue
		}

		jobCopy := *job
		jobs = append(jobs, &jobCopy)
		if limit > 0 && len(jobs) >= limit {
			break
		}
	}

	return jobs, nil
}

func (ms *MemoryStorage) removeFromStatusIndex(jobID uuid.UUID, status Status) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == jobID
	})
}

func (ms *MemoryStorage) removeFromQueueIndex(jobID uuid.UUID, queue string) {
	ms.byQueue[queue] = slices.DeleteFunc(ms.byQueue[queue], func(id uuid.UUID) bool {
		return id == jobID
	})
}
