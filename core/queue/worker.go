package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pnptv/broadcastq/core/logger"
)

// MinConcurrency and MaxConcurrency bound the operator-adjustable worker
// concurrency.
const (
	MinConcurrency = 1
	MaxConcurrency = 10
)

// Worker processes jobs from the queue with bounded concurrency.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	wg       sync.WaitGroup
	mu       sync.RWMutex

	// Configuration
	pollInterval    time.Duration
	jobTimeout      time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// State management
	ctx    context.Context
	cancel context.CancelFunc

	// Concurrency is adjustable at runtime; the claim loop reads it every tick.
	concurrency atomic.Int32

	// Observability metrics
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	activeJobs    atomic.Int32
}

// WorkerStats provides observability metrics for monitoring and debugging.
type WorkerStats struct {
	JobsProcessed int64 // Total number of successfully completed jobs
	JobsFailed    int64 // Total number of failed job executions
	ActiveJobs    int32 // Number of jobs currently being processed
	Concurrency   int32 // Current concurrency limit
	IsRunning     bool  // Whether the worker is currently running
}

// NewWorker creates a new job worker.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:          []string{DefaultQueueName},
		pollInterval:    5 * time.Second,
		jobTimeout:      10 * time.Minute,
		lockTimeout:     15 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		concurrency:     2,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	w := &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		queues:          options.queues,
		workerID:        uuid.New(),
		pollInterval:    options.pollInterval,
		jobTimeout:      options.jobTimeout,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}
	w.concurrency.Store(int32(options.concurrency))

	return w, nil
}

// NewWorkerFromConfig creates a Worker from configuration.
// Additional options can override config values.
func NewWorkerFromConfig(cfg Config, repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	allOpts := append([]WorkerOption{
		WithPollInterval(cfg.PollInterval),
		WithJobTimeout(cfg.JobTimeout),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithConcurrency(cfg.Concurrency),
		WithQueues(cfg.Queues...),
	}, opts...)

	return NewWorker(repo, allOpts...)
}

// RegisterHandler registers a job handler. Registering two handlers for the
// same job type is a configuration error caught here, not at claim time.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.handlers[handler.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrHandlerAlreadyRegistered, handler.Name())
	}

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// HasHandler reports whether a handler is registered for the job type.
func (w *Worker) HasHandler(jobType string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.handlers[jobType]
	return ok
}

// Start begins processing jobs. This is a blocking operation that runs until
// the context is cancelled. Use Run() for errgroup pattern or call this in a
// goroutine. Calling Start on a running worker returns ErrWorkerAlreadyStarted
// without spawning a second poll loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerAlreadyStarted
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.InfoContext(w.ctx, "worker started",
		logger.WorkerID(w.workerID),
		slog.Any("queues", w.queues),
		slog.Int("concurrency", int(w.concurrency.Load())))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.InfoContext(context.Background(), "worker stopping")
			return w.ctx.Err()
		case <-ticker.C:
			w.claimAndDispatch()
		}
	}
}

// claimAndDispatch claims up to the available slots and spawns one execution
// goroutine per claimed job.
func (w *Worker) claimAndDispatch() {
	slots := int(w.concurrency.Load() - w.activeJobs.Load())
	if slots <= 0 {
		w.logger.DebugContext(w.ctx, "all worker slots busy, skipping tick",
			logger.WorkerID(w.workerID))
		return
	}

	jobs, err := w.repo.ClaimJobs(w.ctx, w.workerID, w.queues, slots, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobsToClaim) {
			return
		}
		// Infrastructure fault: treat as "no jobs this tick" and keep polling.
		w.logger.ErrorContext(w.ctx, "failed to claim jobs",
			logger.WorkerID(w.workerID),
			logger.Error(err))
		return
	}

	for _, job := range jobs {
		// Mutex protects against shutdown race: Must verify worker is still
		// running AND add to waitgroup atomically, otherwise Stop() might wait
		// on an incomplete count.
		w.mu.RLock()
		if w.cancel == nil {
			w.mu.RUnlock()
			return
		}
		w.wg.Add(1)
		w.mu.RUnlock()

		go func(job *Job) {
			defer w.wg.Done()
			w.processJob(job)
		}(job)
	}
}

// processJob executes a single claimed job with its handler.
func (w *Worker) processJob(job *Job) {
	start := time.Now()

	w.activeJobs.Add(1)
	defer w.activeJobs.Add(-1)

	w.logger.DebugContext(w.ctx, "claimed job",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.JobType(job.Type),
		logger.Queue(job.Queue),
		slog.Int("attempt", job.Attempts))

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		w.handleMissingHandler(job)
		return
	}

	result, err := w.runWithTimeout(handler, job)
	duration := time.Since(start)

	if err != nil {
		w.handleJobFailure(job, err, duration)
		return
	}

	w.handleJobSuccess(job, result, duration)
}

// runWithTimeout executes the handler under the configured execution budget.
// On timeout the job is failed even if the handler is still running
// underneath; the handler goroutine observes the cancelled context and is
// expected to abort its own I/O.
func (w *Worker) runWithTimeout(handler Handler, job *Job) (json.RawMessage, error) {
	// Independent context: worker shutdown must not interrupt a running job,
	// it gets its full execution budget during graceful shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	type outcome struct {
		result json.RawMessage
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			// Panic recovery keeps a single bad handler from crashing the
			// whole pool; the panic is treated as a retryable job failure.
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic in handler: %v", r)}
			}
		}()
		result, err := handler.Handle(ctx, job.Payload)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		w.logger.WarnContext(context.Background(), "job exceeded execution budget",
			logger.WorkerID(w.workerID),
			logger.JobID(job.ID),
			logger.JobType(job.Type),
			slog.Duration("timeout", w.jobTimeout))
		return nil, errors.Join(ErrJobTimeout, ctx.Err())
	}
}

// handleMissingHandler terminally fails jobs that have no registered handler.
// Retries won't help without a handler, so attempts are forced to the ceiling
// and the job waits for operator inspection instead of looping forever.
func (w *Worker) handleMissingHandler(job *Job) {
	w.jobsFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "no handler registered for job type",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.JobType(job.Type))

	errorMsg := fmt.Sprintf("%s: %s", ErrHandlerNotFound, job.Type)
	if err := w.repo.FailJobPermanently(context.Background(), job.ID, errorMsg); err != nil {
		w.logger.ErrorContext(w.ctx, "failed to permanently fail job",
			logger.JobID(job.ID),
			logger.Error(err))
	}
}

// handleJobFailure records a failed execution. The storage layer decides
// between backoff-and-retry and terminal failure based on the attempt count.
func (w *Worker) handleJobFailure(job *Job, execErr error, duration time.Duration) {
	w.jobsFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "job failed",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.JobType(job.Type),
		slog.Int("attempt", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		logger.Duration(duration),
		logger.Error(execErr))

	if err := w.repo.FailJob(context.Background(), job.ID, execErr.Error()); err != nil {
		w.logger.ErrorContext(w.ctx, "failed to record job failure",
			logger.JobID(job.ID),
			logger.Error(err))
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.logger.WarnContext(w.ctx, "job failed terminally, attempts exhausted",
			logger.WorkerID(w.workerID),
			logger.JobID(job.ID),
			logger.JobType(job.Type))
	}
}

// handleJobSuccess records a completed execution and its result payload.
func (w *Worker) handleJobSuccess(job *Job, result json.RawMessage, duration time.Duration) {
	if err := w.repo.CompleteJob(context.Background(), job.ID, result); err != nil {
		w.logger.ErrorContext(w.ctx, "failed to mark job as completed",
			logger.JobID(job.ID),
			logger.Error(err))
		return
	}

	w.jobsProcessed.Add(1)

	w.logger.InfoContext(w.ctx, "job completed",
		logger.WorkerID(w.workerID),
		logger.JobID(job.ID),
		logger.JobType(job.Type),
		logger.Queue(job.Queue),
		logger.Duration(duration))
}

// Stop gracefully shuts down the worker with a timeout. No new claims occur
// after Stop; in-flight jobs finish naturally. Stopping an already stopped
// worker is a no-op.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return nil
	}

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.InfoContext(context.Background(), "worker stopping, waiting for active jobs to complete",
		logger.WorkerID(w.workerID),
		slog.Duration("timeout", w.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.InfoContext(context.Background(), "worker stopped cleanly",
			logger.WorkerID(w.workerID))
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(context.Background(), "worker shutdown timeout exceeded - some jobs may be abandoned",
			logger.WorkerID(w.workerID),
			slog.Duration("timeout", w.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", w.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the worker, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- w.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = w.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// SetConcurrency adjusts the worker's concurrency limit at runtime. The new
// limit takes effect at the next polling tick; jobs already in flight are
// never interrupted.
func (w *Worker) SetConcurrency(n int) error {
	if n < MinConcurrency || n > MaxConcurrency {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, n)
	}

	w.concurrency.Store(int32(n))

	w.logger.InfoContext(context.Background(), "worker concurrency updated",
		logger.WorkerID(w.workerID),
		slog.Int("concurrency", n))
	return nil
}

// Concurrency returns the current concurrency limit.
func (w *Worker) Concurrency() int {
	return int(w.concurrency.Load())
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cancel != nil
}

// ActiveJobs returns the number of in-flight handler executions.
func (w *Worker) ActiveJobs() int {
	return int(w.activeJobs.Load())
}

// Queues returns the list of queues this worker processes.
func (w *Worker) Queues() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]string, len(w.queues))
	copy(result, w.queues)
	return result
}

// Stats returns current worker statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		JobsProcessed: w.jobsProcessed.Load(),
		JobsFailed:    w.jobsFailed.Load(),
		ActiveJobs:    w.activeJobs.Load(),
		Concurrency:   w.concurrency.Load(),
		IsRunning:     w.IsRunning(),
	}
}

// Healthcheck validates that the worker is operational and not overloaded.
// Returns nil if healthy, or an error describing the health issue.
//
// The returned error can be checked using errors.Is:
//
//	if errors.Is(err, queue.ErrWorkerNotRunning) { ... }
//	if errors.Is(err, queue.ErrWorkerOverloaded) { ... }
func (w *Worker) Healthcheck(ctx context.Context) error {
	stats := w.Stats()

	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerNotRunning)
	}

	if stats.ActiveJobs >= stats.Concurrency {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerOverloaded,
			fmt.Errorf("%d/%d slots busy", stats.ActiveJobs, stats.Concurrency))
	}

	return nil
}
