// Package queue provides a durable asynchronous job queue with background
// workers, periodic scheduling, and automatic retries. Jobs survive process
// restarts through a pluggable storage backend, and long-running fan-out work
// such as broadcast delivery runs under a bounded concurrency cap.
//
// # Features
//
//   - Durable jobs with pending, processing, completed and failed states
//   - Named queues with configurable routing per job
//   - Background worker with a runtime-adjustable concurrency limit (1-10)
//   - Atomic job claiming so concurrent workers never double-process a job
//   - Automatic retries with linear backoff and a per-job attempt ceiling
//   - Periodic jobs with interval, daily and cron schedules
//   - Lock timeouts with expired-lock recovery after crashes
//   - Manual reactivation of failed jobs for operator intervention
//   - Retention cleanup of terminal jobs, itself scheduled as a job
//   - Type-safe job handlers using Go generics
//   - In-memory storage for testing; PostgreSQL storage for production
//
// # Basic Usage
//
// Create the queue service with storage, register handlers, and run:
//
//	storage := queue.NewMemoryStorage()
//
//	service, err := queue.NewService(storage,
//		queue.WithWorkerOptions(
//			queue.WithQueues(queue.QueueBroadcasts),
//			queue.WithConcurrency(2),
//		),
//	)
//
//	type BroadcastPayload struct {
//		BroadcastID string `json:"broadcast_id"`
//	}
//
//	handler := queue.NewJobHandler("send_broadcast", func(ctx context.Context, p BroadcastPayload) (any, error) {
//		return deliver(ctx, p.BroadcastID)
//	})
//	if err := service.RegisterHandler(handler); err != nil {
//		return err
//	}
//
//	// Blocks until ctx is cancelled.
//	go service.Run(ctx)
//
//	job, err := service.Enqueue(ctx, "send_broadcast", BroadcastPayload{BroadcastID: id})
//
// # Job Lifecycle
//
// A job starts pending and is claimed atomically by the worker, which moves it
// to processing and increments its attempt counter. A successful handler moves
// the job to completed with its result stored; a failed handler either
// re-pends the job with a linear backoff (attempts * 30s) or, once the attempt
// ceiling is reached, marks it failed. Failed jobs can be reactivated manually
// through RetryJob, which grants exactly one more execution.
//
// # Periodic Jobs
//
// The scheduler creates job instances for registered schedules and dedupes
// against still-active instances, so a slow cycle never stacks up duplicates:
//
//	service.AddSchedule(queue.JobTypeProcessRetries, queue.Every(5*time.Minute),
//		queue.WithScheduleQueue(queue.QueueRetries),
//	)
//	service.AddSchedule(queue.JobTypeCleanupQueue, queue.DailyAt(2, 0),
//		queue.WithScheduleQueue(queue.QueueCleanup),
//		queue.WithSchedulePayload(queue.CleanupPayload{DaysOld: 7}),
//	)
//
// # Storage Backends
//
// Storage is a composition of small per-component interfaces
// (EnqueuerRepository, WorkerRepository, SchedulerRepository,
// AdminRepository, MaintenanceRepository). NewMemoryStorage satisfies all of
// them for tests and development; the pg integration package provides the
// PostgreSQL implementation with SKIP LOCKED claiming for production.
package queue
