package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/queue"
)

// MockEnqueuerRepository verifies the exact jobs handed to storage.
type MockEnqueuerRepository struct {
	mock.Mock
}

func (m *MockEnqueuerRepository) CreateJob(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("nil repository is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewEnqueuer(nil)
		require.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("job carries defaults and marshaled payload", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		repo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *queue.Job) bool {
			return job.Queue == queue.QueueBroadcasts &&
				job.Type == queue.JobTypeSendBroadcast &&
				job.Status == queue.StatusPending &&
				job.Attempts == 0 &&
				job.MaxAttempts == queue.DefaultMaxAttempts &&
				string(job.Payload) == `{"broadcast_id":"b1"}`
		})).Return(nil)

		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		job, err := enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, broadcastTestPayload{BroadcastID: "b1"})
		require.NoError(t, err)
		assert.NotZero(t, job.ID)
		repo.AssertExpectations(t)
	})

	t.Run("per-call options override defaults", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		repo.On("CreateJob", mock.Anything, mock.MatchedBy(func(job *queue.Job) bool {
			return job.Queue == queue.QueueSegmentBroadcasts &&
				job.MaxAttempts == 5 &&
				job.ScheduledAt.After(time.Now().Add(30*time.Second))
		})).Return(nil)

		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), queue.JobTypeSendSegmentBroadcast, nil,
			queue.WithQueue(queue.QueueSegmentBroadcasts),
			queue.WithMaxAttempts(5),
			queue.WithDelay(time.Minute),
		)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("empty job type is rejected", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), "", nil)
		require.ErrorIs(t, err, queue.ErrInvalidJobType)
	})

	t.Run("type validator rejects unregistered types", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(queue.NewMemoryStorage(),
			queue.WithTypeValidator(func(jobType string) bool {
				return jobType == queue.JobTypeSendBroadcast
			}),
		)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), "nonexistent_type", nil)
		require.ErrorIs(t, err, queue.ErrInvalidJobType)

		_, err = enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil)
		require.NoError(t, err)
	})

	t.Run("invalid max attempts is rejected", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil, queue.WithMaxAttempts(0))
		require.ErrorIs(t, err, queue.ErrInvalidMaxAttempts)
	})

	t.Run("storage failure is propagated", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		repo.On("CreateJob", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), queue.JobTypeSendBroadcast, nil)
		require.ErrorContains(t, err, "connection refused")
	})
}

func TestEnqueuer_EnqueueBatch(t *testing.T) {
	t.Parallel()

	t.Run("jobs are staggered by delayPerJob", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		payloads := []any{
			broadcastTestPayload{BroadcastID: "b1"},
			broadcastTestPayload{BroadcastID: "b2"},
			broadcastTestPayload{BroadcastID: "b3"},
		}

		jobs, err := enqueuer.EnqueueBatch(context.Background(), queue.JobTypeSendBroadcast, payloads,
			queue.WithDelayPerJob(10*time.Second),
		)
		require.NoError(t, err)
		require.Len(t, jobs, 3)

		for i := 1; i < len(jobs); i++ {
			gap := jobs[i].ScheduledAt.Sub(jobs[i-1].ScheduledAt)
			assert.Equal(t, 10*time.Second, gap)
		}

		// Only the first job is immediately claimable.
		claimed, err := storage.ClaimJobs(context.Background(), uuid.New(), []string{queue.QueueBroadcasts}, 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, jobs[0].ID, claimed[0].ID)
	})

	t.Run("empty batch returns no jobs", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)

		jobs, err := enqueuer.EnqueueBatch(context.Background(), queue.JobTypeSendBroadcast, nil)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}
