package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/queue"
)

type broadcastTestPayload struct {
	BroadcastID string `json:"broadcast_id"`
}

func startWorker(t *testing.T, w *queue.Worker) {
	t.Helper()
	go func() { _ = w.Start(context.Background()) }()
	require.Eventually(t, w.IsRunning, time.Second, 5*time.Millisecond)
	t.Cleanup(func() { _ = w.Stop() })
}

func TestWorker_ProcessJob(t *testing.T) {
	t.Parallel()

	t.Run("successful job is completed with its result", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		worker, err := queue.NewWorker(storage,
			queue.WithQueues(queue.QueueBroadcasts),
			queue.WithPollInterval(10*time.Millisecond),
		)
		require.NoError(t, err)

		handler := queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			return map[string]int{"sent": 3}, nil
		})
		require.NoError(t, worker.RegisterHandler(handler))

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		job, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, broadcastTestPayload{BroadcastID: "b1"})
		require.NoError(t, err)

		startWorker(t, worker)

		require.Eventually(t, func() bool {
			got, err := storage.GetJob(context.Background(), job.ID)
			return err == nil && got.Status == queue.StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		completed, err := storage.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, completed.Attempts)
		assert.JSONEq(t, `{"sent":3}`, string(completed.Result))
	})

	t.Run("failing job is re-pended then fails terminally", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		worker, err := queue.NewWorker(storage,
			queue.WithQueues(queue.QueueBroadcasts),
			queue.WithPollInterval(10*time.Millisecond),
		)
		require.NoError(t, err)

		handler := queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			return nil, errors.New("audience lookup failed")
		})
		require.NoError(t, worker.RegisterHandler(handler))

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		job, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil, queue.WithMaxAttempts(1))
		require.NoError(t, err)

		startWorker(t, worker)

		require.Eventually(t, func() bool {
			got, err := storage.GetJob(context.Background(), job.ID)
			return err == nil && got.Status == queue.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		failed, err := storage.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		require.NotNil(t, failed.LastError)
		assert.Contains(t, *failed.LastError, "audience lookup failed")
	})

	t.Run("panicking handler is treated as a failure", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		worker, err := queue.NewWorker(storage,
			queue.WithQueues(queue.QueueBroadcasts),
			queue.WithPollInterval(10*time.Millisecond),
		)
		require.NoError(t, err)

		handler := queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			panic("boom")
		})
		require.NoError(t, worker.RegisterHandler(handler))

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		job, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil, queue.WithMaxAttempts(1))
		require.NoError(t, err)

		startWorker(t, worker)

		require.Eventually(t, func() bool {
			got, err := storage.GetJob(context.Background(), job.ID)
			return err == nil && got.Status == queue.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		failed, err := storage.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		require.NotNil(t, failed.LastError)
		assert.Contains(t, *failed.LastError, "panic")
	})

	t.Run("job with unknown type fails terminally on first claim", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		worker, err := queue.NewWorker(storage,
			queue.WithQueues(queue.QueueBroadcasts),
			queue.WithPollInterval(10*time.Millisecond),
		)
		require.NoError(t, err)

		// A handler must exist for the worker to start; the orphan job's type
		// has none.
		require.NoError(t, worker.RegisterHandler(queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			return nil, nil
		})))

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		job, err := enqueuer.Enqueue(context.Background(), "orphan_type", nil)
		require.NoError(t, err)

		startWorker(t, worker)

		require.Eventually(t, func() bool {
			got, err := storage.GetJob(context.Background(), job.ID)
			return err == nil && got.Status == queue.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		failed, err := storage.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, failed.MaxAttempts, failed.Attempts)
	})

	t.Run("job exceeding execution budget fails", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		worker, err := queue.NewWorker(storage,
			queue.WithQueues(queue.QueueBroadcasts),
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithJobTimeout(50*time.Millisecond),
		)
		require.NoError(t, err)

		handler := queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, nil
			}
		})
		require.NoError(t, worker.RegisterHandler(handler))

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		job, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil, queue.WithMaxAttempts(1))
		require.NoError(t, err)

		startWorker(t, worker)

		require.Eventually(t, func() bool {
			got, err := storage.GetJob(context.Background(), job.ID)
			return err == nil && got.Status == queue.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		failed, err := storage.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		require.NotNil(t, failed.LastError)
		assert.Contains(t, *failed.LastError, queue.ErrJobTimeout.Error())
	})
}

func TestWorker_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	worker, err := queue.NewWorker(storage,
		queue.WithQueues(queue.QueueBroadcasts),
		queue.WithPollInterval(5*time.Millisecond),
		queue.WithConcurrency(2),
	)
	require.NoError(t, err)

	var active, maxActive atomic.Int32
	release := make(chan struct{})

	handler := queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			prev := maxActive.Load()
			if n <= prev || maxActive.CompareAndSwap(prev, n) {
				break
			}
		}
		<-release
		return nil, nil
	})
	require.NoError(t, worker.RegisterHandler(handler))

	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	for range 4 {
		_, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil)
		require.NoError(t, err)
	}

	startWorker(t, worker)

	require.Eventually(t, func() bool {
		return active.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Give the poll loop a few more ticks to (incorrectly) over-claim.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), maxActive.Load())
	assert.Equal(t, 2, worker.ActiveJobs())

	close(release)

	require.Eventually(t, func() bool {
		counts, err := storage.CountsByQueue(context.Background(), queue.QueueBroadcasts)
		return err == nil && counts.Completed == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, maxActive.Load(), int32(2))
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	newReadyWorker := func(t *testing.T) *queue.Worker {
		t.Helper()
		worker, err := queue.NewWorker(queue.NewMemoryStorage(),
			queue.WithPollInterval(10*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p broadcastTestPayload) (any, error) {
			return nil, nil
		})))
		return worker
	}

	t.Run("start without handlers fails", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(queue.NewMemoryStorage())
		require.NoError(t, err)
		require.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoHandlers)
	})

	t.Run("starting a running worker returns ErrWorkerAlreadyStarted", func(t *testing.T) {
		t.Parallel()

		worker := newReadyWorker(t)
		startWorker(t, worker)

		require.ErrorIs(t, worker.Start(context.Background()), queue.ErrWorkerAlreadyStarted)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		worker := newReadyWorker(t)
		startWorker(t, worker)

		require.NoError(t, worker.Stop())
		assert.False(t, worker.IsRunning())
		require.NoError(t, worker.Stop())
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		t.Parallel()

		worker := newReadyWorker(t)
		require.NoError(t, worker.Stop())
	})

	t.Run("healthcheck reflects running state", func(t *testing.T) {
		t.Parallel()

		worker := newReadyWorker(t)
		require.ErrorIs(t, worker.Healthcheck(context.Background()), queue.ErrWorkerNotRunning)

		startWorker(t, worker)
		require.NoError(t, worker.Healthcheck(context.Background()))

		require.NoError(t, worker.Stop())
		require.ErrorIs(t, worker.Healthcheck(context.Background()), queue.ErrHealthcheckFailed)
	})
}

func TestWorker_SetConcurrency(t *testing.T) {
	t.Parallel()

	worker, err := queue.NewWorker(queue.NewMemoryStorage(), queue.WithConcurrency(2))
	require.NoError(t, err)

	t.Run("valid update takes effect immediately", func(t *testing.T) {
		require.NoError(t, worker.SetConcurrency(5))
		assert.Equal(t, 5, worker.Concurrency())
	})

	t.Run("out of range values are rejected", func(t *testing.T) {
		require.ErrorIs(t, worker.SetConcurrency(0), queue.ErrInvalidConcurrency)
		require.ErrorIs(t, worker.SetConcurrency(11), queue.ErrInvalidConcurrency)
		assert.Equal(t, 5, worker.Concurrency())
	})
}
