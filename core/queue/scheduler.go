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

// Scheduler manages periodic job creation. Retry scans and cleanup are
// themselves enqueued as jobs, so they run under the same concurrency cap and
// observability as any other work.
type Scheduler struct {
	repo      SchedulerRepository
	schedules map[string]*scheduledJob
	mu        sync.RWMutex
	interval  time.Duration
	logger    *slog.Logger

	// State management
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	shutdownTimeout time.Duration

	// Observability metrics
	jobsScheduled atomic.Int64
	activeChecks  atomic.Int32
}

// SchedulerStats provides observability metrics for monitoring and debugging.
type SchedulerStats struct {
	JobsScheduled int64 // Total number of jobs created by the scheduler
	ActiveChecks  int32 // Number of check operations currently running
	IsRunning     bool  // Whether the scheduler is currently running
}

// scheduledJob holds configuration for one periodic job type.
type scheduledJob struct {
	jobType         string
	schedule        Schedule
	queue           string
	maxAttempts     int
	payload         json.RawMessage
	lastScheduledAt *time.Time
}

// NewScheduler creates a new periodic job scheduler.
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval:   30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:            repo,
		schedules:       make(map[string]*scheduledJob),
		interval:        options.checkInterval,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}, nil
}

// NewSchedulerFromConfig creates a Scheduler from configuration.
// Additional options can override config values.
func NewSchedulerFromConfig(cfg Config, repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	allOpts := append([]SchedulerOption{
		WithCheckInterval(cfg.CheckInterval),
		WithSchedulerShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return NewScheduler(repo, allOpts...)
}

// AddSchedule registers a periodic job with the scheduler.
func (s *Scheduler) AddSchedule(jobType string, schedule Schedule, opts ...ScheduleOption) error {
	schedOpts := &scheduleOptions{
		queue:       DefaultQueueName,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(schedOpts)
	}

	var payload json.RawMessage
	if schedOpts.payload != nil {
		raw, err := json.Marshal(schedOpts.payload)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule payload for %q: %w", jobType, err)
		}
		payload = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[jobType]; exists {
		return fmt.Errorf("%w: %q", ErrScheduleAlreadyRegistered, jobType)
	}

	s.schedules[jobType] = &scheduledJob{
		jobType:     jobType,
		schedule:    schedule,
		queue:       schedOpts.queue,
		maxAttempts: schedOpts.maxAttempts,
		payload:     payload,
	}

	s.logger.InfoContext(context.Background(), "registered periodic job",
		logger.JobType(jobType),
		slog.String("schedule", schedule.String()))

	return nil
}

// Start begins the scheduler's periodic job checking. This is a blocking
// operation that runs until the context is cancelled. Use Run() for errgroup
// pattern or call this in a goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrSchedulerAlreadyStarted
	}

	scheduleCount := len(s.schedules)
	if scheduleCount == 0 {
		s.mu.Unlock()
		return ErrSchedulerNotConfigured
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(s.ctx, "scheduler started",
		slog.Int("schedule_count", scheduleCount),
		slog.Duration("check_interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkSchedulesWithWait()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.InfoContext(context.Background(), "scheduler stopping")
			return s.ctx.Err()
		case <-ticker.C:
			s.checkSchedulesWithWait()
		}
	}
}

// Stop gracefully shuts down the scheduler with a timeout. Stopping an
// already stopped scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}

	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.InfoContext(context.Background(), "scheduler stopped cleanly")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(context.Background(), "scheduler shutdown timeout exceeded",
			slog.Duration("timeout", s.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", s.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
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

// checkSchedulesWithWait wraps checkSchedules with WaitGroup tracking.
func (s *Scheduler) checkSchedulesWithWait() {
	// Mutex protects against shutdown race: Must verify scheduler is still
	// running AND add to waitgroup atomically, otherwise Stop() might wait on
	// an incomplete count.
	s.mu.RLock()
	if s.cancel == nil {
		s.mu.RUnlock()
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	defer s.wg.Done()

	s.activeChecks.Add(1)
	defer s.activeChecks.Add(-1)

	// Use context.Background() to avoid issues during shutdown when s.ctx is cancelled.
	s.checkSchedules(context.Background())
}

// checkSchedules checks all registered schedules and creates any jobs that are due.
func (s *Scheduler) checkSchedules(ctx context.Context) {
	s.mu.RLock()
	schedules := make([]*scheduledJob, 0, len(s.schedules))
	for _, sched := range s.schedules {
		schedules = append(schedules, sched)
	}
	s.mu.RUnlock()

	now := time.Now()

	for _, sched := range schedules {
		if err := s.scheduleIfDue(ctx, sched, now); err != nil {
			s.logger.ErrorContext(ctx, "failed to schedule periodic job",
				logger.JobType(sched.jobType),
				slog.String("schedule", sched.schedule.String()),
				logger.Error(err))
		}
	}
}

// scheduleIfDue creates the next job instance for a schedule when it is due.
func (s *Scheduler) scheduleIfDue(ctx context.Context, sched *scheduledJob, now time.Time) error {
	nextRun := s.nextRun(sched, now)
	if sched.lastScheduledAt != nil && nextRun.After(now) {
		return nil
	}

	// Idempotency check: a pending or processing instance from an unfinished
	// previous cycle means this fire is a no-op, never a duplicate enqueue.
	// Also protects against multiple scheduler instances racing.
	existing, err := s.repo.GetActiveJobByType(ctx, sched.jobType)
	if err == nil && existing != nil {
		s.markScheduled(sched.jobType, &existing.ScheduledAt)
		s.logger.DebugContext(ctx, "periodic job still active, skipping",
			logger.JobType(sched.jobType),
			slog.String("status", string(existing.Status)))
		return nil
	}

	job := &Job{
		ID:          uuid.New(),
		Queue:       sched.queue,
		Type:        sched.jobType,
		Payload:     sched.payload,
		Status:      StatusPending,
		MaxAttempts: sched.maxAttempts,
		ScheduledAt: nextRun,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to create periodic job: %w", err)
	}

	s.jobsScheduled.Add(1)
	s.markScheduled(sched.jobType, &nextRun)

	s.logger.InfoContext(ctx, "created periodic job",
		logger.JobType(sched.jobType),
		logger.Queue(sched.queue),
		slog.Time("scheduled_for", nextRun))

	return nil
}

// nextRun determines when the schedule should fire next.
func (s *Scheduler) nextRun(sched *scheduledJob, now time.Time) time.Time {
	if sched.lastScheduledAt == nil {
		// First fire: interval schedules wait one full interval from now,
		// calendar schedules fire at their next calendar slot.
		return sched.schedule.Next(now)
	}
	return sched.schedule.Next(*sched.lastScheduledAt)
}

// markScheduled updates the lastScheduledAt time for a schedule.
func (s *Scheduler) markScheduled(jobType string, at *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched, ok := s.schedules[jobType]; ok {
		sched.lastScheduledAt = at
	}
}

// RemoveSchedule removes a periodic job from the scheduler.
func (s *Scheduler) RemoveSchedule(jobType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.schedules, jobType)

	s.logger.InfoContext(context.Background(), "removed periodic job",
		logger.JobType(jobType))
}

// ListSchedules returns all registered periodic job types.
func (s *Scheduler) ListSchedules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	return names
}

// IsRunning reports whether the check loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancel != nil
}

// Stats returns current scheduler statistics for observability and monitoring.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		JobsScheduled: s.jobsScheduled.Load(),
		ActiveChecks:  s.activeChecks.Load(),
		IsRunning:     s.IsRunning(),
	}
}

// Healthcheck validates that the scheduler is operational.
func (s *Scheduler) Healthcheck(ctx context.Context) error {
	if !s.IsRunning() {
		return errors.Join(ErrHealthcheckFailed, ErrSchedulerNotRunning)
	}

	s.mu.RLock()
	scheduleCount := len(s.schedules)
	s.mu.RUnlock()

	if scheduleCount == 0 {
		return errors.Join(ErrHealthcheckFailed, ErrSchedulerNotConfigured)
	}

	return nil
}
