package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a component is constructed without a storage backend.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrInvalidJobType is returned when enqueueing a job whose type has no registered handler.
	ErrInvalidJobType = errors.New("job type has no registered handler")

	// ErrInvalidMaxAttempts is returned when enqueue options carry a non-positive attempt ceiling.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrHandlerAlreadyRegistered is returned when registering a duplicate handler for a job type.
	ErrHandlerAlreadyRegistered = errors.New("handler already registered for job type")

	// ErrHandlerNotFound is returned when a claimed job references an unregistered job type.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrNoHandlers is returned when starting a worker with no registered handlers.
	ErrNoHandlers = errors.New("no handlers registered")

	// ErrJobNotFound is returned when a job lookup does not match any stored job.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotRetryable is returned when retrying a job that is not in the failed state.
	ErrJobNotRetryable = errors.New("job is not in a retryable state")

	// ErrNoJobsToClaim is returned by storage when no eligible pending jobs exist.
	ErrNoJobsToClaim = errors.New("no jobs available to claim")

	// ErrJobTimeout is recorded when a handler exceeds its execution budget.
	ErrJobTimeout = errors.New("job execution timed out")

	// ErrStorageFailure wraps storage-level I/O errors so callers can
	// distinguish infrastructure faults from domain errors.
	ErrStorageFailure = errors.New("job storage failure")

	// ErrWorkerAlreadyStarted is returned when Start is called on a running worker.
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrInvalidConcurrency is returned when the requested concurrency is outside 1..10.
	ErrInvalidConcurrency = errors.New("concurrency must be between 1 and 10")

	// ErrScheduleAlreadyRegistered is returned when registering a duplicate periodic job.
	ErrScheduleAlreadyRegistered = errors.New("schedule already registered for job type")

	// ErrSchedulerNotConfigured is returned when starting a scheduler with no registered schedules.
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered schedules")

	// ErrSchedulerAlreadyStarted is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyStarted = errors.New("scheduler already started")

	// ErrHealthcheckFailed is returned when a component health check fails.
	ErrHealthcheckFailed = errors.New("healthcheck failed")

	// ErrWorkerNotRunning is returned by health checks when the worker is stopped.
	ErrWorkerNotRunning = errors.New("worker not running")

	// ErrWorkerOverloaded is returned by health checks when all worker slots are busy.
	ErrWorkerOverloaded = errors.New("worker overloaded")

	// ErrSchedulerNotRunning is returned by health checks when the scheduler is stopped.
	ErrSchedulerNotRunning = errors.New("scheduler not running")
)
