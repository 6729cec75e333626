package broadcast

import (
	"context"

	"github.com/pnptv/broadcastq/core/queue"
)

// Enqueuer creates queue jobs. *queue.Service and *queue.Enqueuer both
// satisfy it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts ...queue.EnqueueOption) (*queue.Job, error)
	EnqueueBatch(ctx context.Context, jobType string, payloads []any, opts ...queue.EnqueueOption) ([]*queue.Job, error)
}

// EnqueueBroadcast creates a send_broadcast job for the full audience.
func EnqueueBroadcast(ctx context.Context, enq Enqueuer, broadcastID string, opts ...queue.EnqueueOption) (*queue.Job, error) {
	if broadcastID == "" {
		return nil, ErrEmptyBroadcastID
	}

	opts = append([]queue.EnqueueOption{queue.WithQueue(queue.QueueBroadcasts)}, opts...)
	return enq.Enqueue(ctx, queue.JobTypeSendBroadcast, SendBroadcastPayload{BroadcastID: broadcastID}, opts...)
}

// EnqueueSegmentBroadcasts creates one send_segment_broadcast job per segment.
// Combine with queue.WithDelayPerJob to stagger the segments so they don't
// compete for the same delivery budget at once.
func EnqueueSegmentBroadcasts(ctx context.Context, enq Enqueuer, broadcastID string, segments []string, opts ...queue.EnqueueOption) ([]*queue.Job, error) {
	if broadcastID == "" {
		return nil, ErrEmptyBroadcastID
	}

	payloads := make([]any, 0, len(segments))
	for _, segment := range segments {
		payloads = append(payloads, SendSegmentBroadcastPayload{BroadcastID: broadcastID, Segment: segment})
	}

	opts = append([]queue.EnqueueOption{queue.WithQueue(queue.QueueSegmentBroadcasts)}, opts...)
	return enq.EnqueueBatch(ctx, queue.JobTypeSendSegmentBroadcast, payloads, opts...)
}
