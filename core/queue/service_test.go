package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/queue"
)

func newTestService(t *testing.T, storage queue.Storage) *queue.Service {
	t.Helper()

	service, err := queue.NewService(storage,
		queue.WithWorkerOptions(
			queue.WithQueues(queue.QueueBroadcasts, queue.QueueSegmentBroadcasts, queue.QueueRetries, queue.QueueCleanup),
			queue.WithPollInterval(10*time.Millisecond),
		),
	)
	require.NoError(t, err)
	return service
}

func registerNoopBroadcastHandler(t *testing.T, service *queue.Service) {
	t.Helper()
	require.NoError(t, service.RegisterHandler(queue.NewJobHandler(queue.JobTypeSendBroadcast,
		func(ctx context.Context, p broadcastTestPayload) (any, error) {
			return nil, nil
		})))
}

func TestService_New(t *testing.T) {
	t.Parallel()

	t.Run("nil storage is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewService(nil)
		require.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("enqueue of unregistered type is rejected", func(t *testing.T) {
		t.Parallel()

		service := newTestService(t, queue.NewMemoryStorage())
		registerNoopBroadcastHandler(t, service)

		_, err := service.Enqueue(context.Background(), "unregistered_type", nil)
		require.ErrorIs(t, err, queue.ErrInvalidJobType)

		_, err = service.Enqueue(context.Background(), queue.JobTypeSendBroadcast, broadcastTestPayload{BroadcastID: "b1"})
		require.NoError(t, err)
	})
}

func TestService_RunProcessesJobs(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	service := newTestService(t, storage)

	processed := make(chan string, 1)
	require.NoError(t, service.RegisterHandler(queue.NewJobHandler(queue.JobTypeSendBroadcast,
		func(ctx context.Context, p broadcastTestPayload) (any, error) {
			processed <- p.BroadcastID
			return map[string]int{"sent": 1}, nil
		})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	job, err := service.Enqueue(ctx, queue.JobTypeSendBroadcast, broadcastTestPayload{BroadcastID: "b42"})
	require.NoError(t, err)

	select {
	case id := <-processed:
		assert.Equal(t, "b42", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed in time")
	}

	require.Eventually(t, func() bool {
		got, err := service.Job(context.Background(), job.ID)
		return err == nil && got.Status == queue.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not shut down in time")
	}
}

func TestService_QueueInspection(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	service := newTestService(t, storage)
	registerNoopBroadcastHandler(t, service)
	ctx := context.Background()

	for range 3 {
		_, err := service.Enqueue(ctx, queue.JobTypeSendBroadcast, nil)
		require.NoError(t, err)
	}

	failed := newPendingJob(t, queue.QueueSegmentBroadcasts, queue.JobTypeSendSegmentBroadcast)
	failed.Status = queue.StatusFailed
	require.NoError(t, storage.CreateJob(ctx, failed))

	t.Run("queue status", func(t *testing.T) {
		status, err := service.QueueStatus(ctx, queue.QueueBroadcasts)
		require.NoError(t, err)
		assert.Equal(t, queue.QueueBroadcasts, status.Name)
		assert.Equal(t, 3, status.Counts.Pending)
		assert.False(t, status.Running)
	})

	t.Run("all queue statuses", func(t *testing.T) {
		statuses, err := service.AllQueueStatuses(ctx)
		require.NoError(t, err)
		assert.Len(t, statuses, 2)
	})

	t.Run("statistics aggregate across queues", func(t *testing.T) {
		stats, err := service.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Queues)
		assert.Equal(t, 3, stats.Pending)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 4, stats.Total)
	})

	t.Run("failed jobs listing", func(t *testing.T) {
		jobs, err := service.FailedJobs(ctx, queue.QueueSegmentBroadcasts, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, failed.ID, jobs[0].ID)
	})

	t.Run("retry failed job", func(t *testing.T) {
		require.NoError(t, service.RetryJob(ctx, failed.ID))

		job, err := service.Job(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPending, job.Status)
	})
}

func TestService_ClearCompletedJobs(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	service := newTestService(t, storage)
	ctx := context.Background()

	old := newPendingJob(t, queue.QueueBroadcasts, queue.JobTypeSendBroadcast)
	old.Status = queue.StatusCompleted
	old.UpdatedAt = time.Now().AddDate(0, 0, -30)
	require.NoError(t, storage.CreateJob(ctx, old))

	deleted, err := service.ClearCompletedJobs(ctx, queue.QueueBroadcasts, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestService_WorkerControls(t *testing.T) {
	t.Parallel()

	service := newTestService(t, queue.NewMemoryStorage())

	assert.False(t, service.IsWorkerRunning())
	assert.Zero(t, service.ActiveJobs())

	require.NoError(t, service.SetConcurrency(4))
	assert.Equal(t, 4, service.Worker().Concurrency())

	require.ErrorIs(t, service.SetConcurrency(0), queue.ErrInvalidConcurrency)

	err := service.Healthcheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, queue.ErrWorkerNotRunning))
}

func TestService_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	service := newTestService(t, queue.NewMemoryStorage())

	require.NoError(t, service.Stop())
	require.NoError(t, service.Stop())
}
