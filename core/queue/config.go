package queue

import "time"

// Config holds the configuration for worker, scheduler and enqueuer
// components. Designed for environment-based configuration using popular env
// parsing libraries.
type Config struct {
	// Worker configuration
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	JobTimeout      time.Duration `env:"QUEUE_JOB_TIMEOUT" envDefault:"10m"`
	LockTimeout     time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"15m"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Concurrency     int           `env:"QUEUE_CONCURRENCY" envDefault:"2"`
	Queues          []string      `env:"QUEUE_WORKER_QUEUES" envDefault:"broadcasts,segment-broadcasts,retries,cleanup" envSeparator:","`

	// Scheduler configuration
	CheckInterval time.Duration `env:"QUEUE_CHECK_INTERVAL" envDefault:"30s"`
	RetryInterval time.Duration `env:"QUEUE_RETRY_INTERVAL" envDefault:"5m"`
	CleanupHour   int           `env:"QUEUE_CLEANUP_HOUR" envDefault:"2"`
	RetentionDays int           `env:"QUEUE_RETENTION_DAYS" envDefault:"7"`

	// Enqueuer configuration
	DefaultQueue       string `env:"QUEUE_DEFAULT_QUEUE" envDefault:"broadcasts"`
	DefaultMaxAttempts int    `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		JobTimeout:         10 * time.Minute,
		LockTimeout:        15 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
		Concurrency:        2,
		Queues:             []string{QueueBroadcasts, QueueSegmentBroadcasts, QueueRetries, QueueCleanup},
		CheckInterval:      30 * time.Second,
		RetryInterval:      5 * time.Minute,
		CleanupHour:        2,
		RetentionDays:      7,
		DefaultQueue:       QueueBroadcasts,
		DefaultMaxAttempts: DefaultMaxAttempts,
	}
}
