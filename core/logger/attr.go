package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Attribute helpers use the empty Attr pattern for nil safety, so call sites
// can write log.Error("msg", logger.Error(err)) without checking err first.

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// JobID creates an attribute for a queue job identifier.
func JobID(id uuid.UUID) slog.Attr {
	return slog.String("job_id", id.String())
}

// JobType creates an attribute for a job's handler type.
func JobType(jobType string) slog.Attr {
	return slog.String("job_type", jobType)
}

// Queue creates an attribute for a queue name.
func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

// WorkerID creates an attribute for the claiming worker's identity.
func WorkerID(id uuid.UUID) slog.Attr {
	return slog.String("worker_id", id.String())
}

// BroadcastID creates an attribute for a broadcast campaign identifier.
func BroadcastID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("broadcast_id", id)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
