package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues          []string
	pollInterval    time.Duration
	jobTimeout      time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	concurrency     int
	logger          *slog.Logger
}

// WithQueues sets the queues the worker claims jobs from.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPollInterval sets how often the worker polls for claimable jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithJobTimeout sets the per-job execution budget. Broadcast sends can take
// minutes, so the default is generous.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

// WithLockTimeout sets how long a claim lock is held before the retry scan
// may hand the job to another worker. Should exceed the job timeout.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithShutdownTimeout sets the maximum wait for in-flight jobs during Stop.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithConcurrency sets the initial concurrency limit, clamped to the
// operator-adjustable range.
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n >= MinConcurrency && n <= MaxConcurrency {
			o.concurrency = n
		}
	}
}

// WithWorkerLogger sets the logger for worker operations.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
