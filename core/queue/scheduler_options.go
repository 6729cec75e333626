package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption is a functional option for configuring a scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// WithCheckInterval configures how frequently the scheduler checks for due
// jobs. Shorter intervals give more precise firing at the cost of more
// storage queries.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerShutdownTimeout configures maximum wait for active checks
// during shutdown.
func WithSchedulerShutdownTimeout(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithSchedulerLogger configures structured logging for scheduler operations.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ScheduleOption is a functional option for configuring a registered schedule.
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	queue       string
	maxAttempts int
	payload     any
}

// WithScheduleQueue routes the periodic job instances to a specific queue.
func WithScheduleQueue(queue string) ScheduleOption {
	return func(o *scheduleOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithScheduleMaxAttempts configures retry behavior for periodic job
// instances. Capped to prevent infinite retry loops on persistent failures.
func WithScheduleMaxAttempts(n int) ScheduleOption {
	return func(o *scheduleOptions) {
		if n >= 1 && n <= 10 {
			o.maxAttempts = n
		}
	}
}

// WithSchedulePayload sets a fixed payload carried by every instance of the
// periodic job, e.g. the retention window for cleanup.
func WithSchedulePayload(payload any) ScheduleOption {
	return func(o *scheduleOptions) {
		o.payload = payload
	}
}
