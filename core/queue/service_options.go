package queue

import (
	"fmt"
	"log/slog"
)

// ServiceOption is a functional option for configuring a service.
type ServiceOption func(*Service) error

// WithServiceLogger configures structured logging for service operations.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithWorkerOptions rebuilds the service's worker with the given options.
func WithWorkerOptions(opts ...WorkerOption) ServiceOption {
	return func(s *Service) error {
		worker, err := NewWorker(s.storage, opts...)
		if err != nil {
			return fmt.Errorf("failed to configure worker: %w", err)
		}
		s.worker = worker
		return nil
	}
}

// WithSchedulerOptions rebuilds the service's scheduler with the given options.
func WithSchedulerOptions(opts ...SchedulerOption) ServiceOption {
	return func(s *Service) error {
		scheduler, err := NewScheduler(s.storage, opts...)
		if err != nil {
			return fmt.Errorf("failed to configure scheduler: %w", err)
		}
		s.scheduler = scheduler
		return nil
	}
}

// WithEnqueuerOptions rebuilds the service's enqueuer with the given options.
// The handler-based type validator is always applied; pass WithTypeValidator
// explicitly to override it.
func WithEnqueuerOptions(opts ...EnqueuerOption) ServiceOption {
	return func(s *Service) error {
		allOpts := append([]EnqueuerOption{WithTypeValidator(s.worker.HasHandler)}, opts...)
		enqueuer, err := NewEnqueuer(s.storage, allOpts...)
		if err != nil {
			return fmt.Errorf("failed to configure enqueuer: %w", err)
		}
		s.enqueuer = enqueuer
		return nil
	}
}

// WithSchedulerRequired makes Run fail instead of skipping the scheduler when
// no schedules are registered.
func WithSchedulerRequired() ServiceOption {
	return func(s *Service) error {
		s.skipSchedulerIfEmpty = false
		return nil
	}
}
