package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer handles job creation with configurable defaults.
type Enqueuer struct {
	repo               EnqueuerRepository
	defaultQueue       string
	defaultMaxAttempts int
	typeValidator      func(jobType string) bool
}

// NewEnqueuer creates a new Enqueuer with the given repository and options.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:       DefaultQueueName,
		defaultMaxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:               repo,
		defaultQueue:       options.defaultQueue,
		defaultMaxAttempts: options.defaultMaxAttempts,
		typeValidator:      options.typeValidator,
	}, nil
}

// NewEnqueuerFromConfig creates an Enqueuer from configuration.
// Additional options can override config values.
func NewEnqueuerFromConfig(cfg Config, repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	configOpts := make([]EnqueuerOption, 0, 2)
	if cfg.DefaultQueue != "" {
		configOpts = append(configOpts, WithDefaultQueue(cfg.DefaultQueue))
	}
	if cfg.DefaultMaxAttempts > 0 {
		configOpts = append(configOpts, WithDefaultMaxAttempts(cfg.DefaultMaxAttempts))
	}

	return NewEnqueuer(repo, append(configOpts, opts...)...)
}

// Enqueue adds a new job to the queue. The job type selects the handler that
// will execute it; when a type validator is configured, unregistered types are
// rejected here instead of surfacing at claim time.
func (e *Enqueuer) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (*Job, error) {
	options, err := e.buildOptions(jobType, opts)
	if err != nil {
		return nil, err
	}

	job, err := e.buildJob(jobType, payload, options, 0)
	if err != nil {
		return nil, err
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create %q job in queue %q: %w", jobType, job.Queue, err)
	}

	return job, nil
}

// EnqueueBatch creates one job per payload. When delayPerJob is configured,
// job N becomes eligible N*delayPerJob after the first, so a burst of
// campaigns does not all claim at once.
func (e *Enqueuer) EnqueueBatch(ctx context.Context, jobType string, payloads []any, opts ...EnqueueOption) ([]*Job, error) {
	options, err := e.buildOptions(jobType, opts)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(payloads))
	for i, payload := range payloads {
		job, err := e.buildJob(jobType, payload, options, time.Duration(i)*options.delayPerJob)
		if err != nil {
			return nil, err
		}

		if err := e.repo.CreateJob(ctx, job); err != nil {
			return jobs, fmt.Errorf("failed to create %q batch job %d/%d: %w", jobType, i+1, len(payloads), err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (e *Enqueuer) buildOptions(jobType string, opts []EnqueueOption) (*enqueueOptions, error) {
	if jobType == "" {
		return nil, fmt.Errorf("%w: empty job type", ErrInvalidJobType)
	}
	if e.typeValidator != nil && !e.typeValidator(jobType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		maxAttempts: e.defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.maxAttempts < 1 {
		return nil, ErrInvalidMaxAttempts
	}
	return options, nil
}

// buildJob constructs a Job from payload and options. A nil payload is stored
// as-is; maintenance jobs carry no payload at all.
func (e *Enqueuer) buildJob(jobType string, payload any, options *enqueueOptions, stagger time.Duration) (*Job, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
		}
		payloadBytes = raw
	}

	now := time.Now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = scheduledAt.Add(options.delay)
	}
	scheduledAt = scheduledAt.Add(stagger)

	return &Job{
		ID:          uuid.New(),
		Queue:       options.queue,
		Type:        jobType,
		Payload:     payloadBytes,
		Status:      StatusPending,
		Attempts:    0,
		MaxAttempts: options.maxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
