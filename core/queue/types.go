package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Queue names used by the broadcast platform. Jobs in different queues share
// one worker pool but can be inspected and cleaned independently.
const (
	QueueBroadcasts        = "broadcasts"
	QueueSegmentBroadcasts = "segment-broadcasts"
	QueueRetries           = "retries"
	QueueCleanup           = "cleanup"
)

// DefaultQueueName is used when no queue is specified at enqueue time.
const DefaultQueueName = QueueBroadcasts

// Job type names. A job's type selects the registered handler that executes it.
const (
	JobTypeSendBroadcast        = "send_broadcast"
	JobTypeSendSegmentBroadcast = "send_segment_broadcast"
	JobTypeProcessRetries       = "process_retries"
	JobTypeCleanupQueue         = "cleanup_queue"
)

// Status tracks the lifecycle state of a job through the queue system.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state. A failed job can still
// be reactivated, but only by the retry scan or an explicit operator retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// DefaultMaxAttempts is the execution ceiling applied when none is configured.
const DefaultMaxAttempts = 3

// Job represents one persisted unit of work.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   *string         `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID      `json:"locked_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RetryBackoff returns the delay before a failed job becomes eligible again.
// Linear progression (30s, 60s, 90s...) recovers quickly from transient issues
// without hammering a persistently failing dependency.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts) * 30 * time.Second
}

// QueueCounts holds per-status job counts for one queue.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of jobs across all statuses.
func (c QueueCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// QueueStatus combines a queue's counts with the worker's running flag.
type QueueStatus struct {
	Name    string      `json:"name"`
	Counts  QueueCounts `json:"counts"`
	Running bool        `json:"running"`
}

// Statistics aggregates job counts across all known queues.
type Statistics struct {
	Queues     int `json:"queues"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
