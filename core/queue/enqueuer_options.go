package queue

import "time"

// EnqueuerOption is a functional option for configuring an enqueuer.
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue       string
	defaultMaxAttempts int
	typeValidator      func(jobType string) bool
}

// WithDefaultQueue sets the queue used when enqueue options don't specify one.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultMaxAttempts sets the attempt ceiling applied when enqueue
// options don't specify one.
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if n > 0 {
			o.defaultMaxAttempts = n
		}
	}
}

// WithTypeValidator rejects enqueue calls for job types the validator does
// not recognize, so a broken type string fails at creation time rather than
// at claim time.
func WithTypeValidator(fn func(jobType string) bool) EnqueuerOption {
	return func(o *enqueuerOptions) {
		o.typeValidator = fn
	}
}

// EnqueueOption is a functional option for a single enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	maxAttempts int
	delay       time.Duration
	delayPerJob time.Duration
	scheduledAt *time.Time
}

// WithQueue routes the job to a specific queue.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithMaxAttempts overrides the attempt ceiling for this job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxAttempts = n
	}
}

// WithDelay postpones the job's first eligibility by the given duration.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt sets an explicit first-eligibility time.
func WithScheduledAt(at time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &at
	}
}

// WithDelayPerJob staggers batch jobs: job N becomes eligible N*d after the
// first. Ignored by single-job enqueues.
func WithDelayPerJob(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delayPerJob = d
		}
	}
}
