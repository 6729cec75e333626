package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pnptv/broadcastq/core/logger"
	"github.com/pnptv/broadcastq/core/queue"
)

// Repository resolves broadcast campaigns from whatever the application
// stores them in.
type Repository interface {
	// ResolveAudience returns the recipients of a broadcast. An empty segment
	// means the full audience.
	ResolveAudience(ctx context.Context, broadcastID, segment string) ([]Recipient, error)
	// Content returns the campaign content for a broadcast.
	Content(ctx context.Context, broadcastID string) (Content, error)
}

// Sender delivers one message to one recipient over a concrete channel.
// Implementations classify channel rejections with ErrRecipientBlocked,
// ErrRecipientDeactivated or RateLimitedError; any other error counts the
// recipient as failed.
type Sender interface {
	Send(ctx context.Context, recipient Recipient, msg Message) error
}

// Ledger records per-recipient delivery outcomes so a retried broadcast job
// can skip recipients who already got the message. A nil ledger is valid and
// means retries resend to everyone.
type Ledger interface {
	IsDelivered(ctx context.Context, broadcastID string, recipientID int64) (bool, error)
	MarkDelivered(ctx context.Context, broadcastID string, recipientID int64) error
}

// Fanout executes broadcast jobs by sending the campaign message to every
// recipient sequentially with pacing between sends. Per-recipient errors are
// classified and tallied; only audience or content resolution failures fail
// the job itself.
type Fanout struct {
	repo   Repository
	sender Sender
	ledger Ledger
	pacing time.Duration
	logger *slog.Logger
}

// DefaultPacing spaces sends about 12 per second, well under Telegram's 30/s
// broadcast cap.
const DefaultPacing = 80 * time.Millisecond

// NewFanout creates a broadcast fan-out processor.
func NewFanout(repo Repository, sender Sender, opts ...FanoutOption) (*Fanout, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	f := &Fanout{
		repo:   repo,
		sender: sender,
		pacing: DefaultPacing,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// SendBroadcastHandler returns the queue handler for full-audience broadcasts.
func (f *Fanout) SendBroadcastHandler() queue.Handler {
	return queue.NewJobHandler(queue.JobTypeSendBroadcast, func(ctx context.Context, p SendBroadcastPayload) (any, error) {
		return f.Deliver(ctx, p.BroadcastID, "")
	})
}

// SendSegmentBroadcastHandler returns the queue handler for segment broadcasts.
func (f *Fanout) SendSegmentBroadcastHandler() queue.Handler {
	return queue.NewJobHandler(queue.JobTypeSendSegmentBroadcast, func(ctx context.Context, p SendSegmentBroadcastPayload) (any, error) {
		return f.Deliver(ctx, p.BroadcastID, p.Segment)
	})
}

// Deliver resolves the audience and content for a broadcast and sends the
// message to every recipient, returning outcome counts. The counts always
// satisfy Sent+Blocked+Deactivated+Failed == Total == audience size.
func (f *Fanout) Deliver(ctx context.Context, broadcastID, segment string) (Result, error) {
	if broadcastID == "" {
		return Result{}, ErrEmptyBroadcastID
	}

	audience, err := f.repo.ResolveAudience(ctx, broadcastID, segment)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve audience for broadcast %s: %w", broadcastID, err)
	}

	content, err := f.repo.Content(ctx, broadcastID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load content for broadcast %s: %w", broadcastID, err)
	}
	if content.TextFor("") == "" {
		return Result{}, fmt.Errorf("broadcast %s: %w", broadcastID, ErrNoContent)
	}

	result := Result{Total: len(audience)}

	f.logger.InfoContext(ctx, "broadcast fan-out started",
		logger.BroadcastID(broadcastID),
		slog.String("segment", segment),
		slog.Int("audience", len(audience)))

	for i, recipient := range audience {
		if i > 0 {
			if err := f.pace(ctx); err != nil {
				return result, err
			}
		}

		delivered, err := f.alreadyDelivered(ctx, broadcastID, recipient.ID)
		if err != nil {
			f.logger.WarnContext(ctx, "ledger lookup failed, sending anyway",
				logger.BroadcastID(broadcastID),
				slog.Int64("recipient_id", recipient.ID),
				logger.Error(err))
		}
		if delivered {
			// Already reached this recipient on a previous attempt of this
			// job; counts as sent so the tally stays conserved.
			result.Sent++
			continue
		}

		msg := Message{
			Text:     content.TextFor(recipient.Language),
			PhotoURL: content.PhotoURL,
			Buttons:  content.Buttons,
		}

		f.classify(ctx, broadcastID, recipient, f.sendWithRetry(ctx, recipient, msg), &result)
	}

	f.logger.InfoContext(ctx, "broadcast fan-out finished",
		logger.BroadcastID(broadcastID),
		slog.String("segment", segment),
		slog.Int("sent", result.Sent),
		slog.Int("blocked", result.Blocked),
		slog.Int("deactivated", result.Deactivated),
		slog.Int("failed", result.Failed),
		slog.Int("total", result.Total))

	return result, nil
}

// sendWithRetry sends once and, if the channel rate-limits us, waits the
// advertised duration and tries exactly one more time.
func (f *Fanout) sendWithRetry(ctx context.Context, recipient Recipient, msg Message) error {
	err := f.sender.Send(ctx, recipient, msg)
	rle, ok := AsRateLimited(err)
	if !ok {
		return err
	}

	f.logger.WarnContext(ctx, "rate limited by delivery channel",
		slog.Int64("recipient_id", recipient.ID),
		slog.Duration("retry_after", rle.RetryAfter))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rle.RetryAfter):
	}

	return f.sender.Send(ctx, recipient, msg)
}

// classify updates the result tally for one recipient outcome.
func (f *Fanout) classify(ctx context.Context, broadcastID string, recipient Recipient, err error, result *Result) {
	switch {
	case err == nil:
		result.Sent++
		f.markDelivered(ctx, broadcastID, recipient.ID)
	case errors.Is(err, ErrRecipientBlocked):
		result.Blocked++
	case errors.Is(err, ErrRecipientDeactivated):
		result.Deactivated++
	default:
		result.Failed++
		f.logger.DebugContext(ctx, "delivery failed",
			logger.BroadcastID(broadcastID),
			slog.Int64("recipient_id", recipient.ID),
			logger.Error(err))
	}
}

func (f *Fanout) alreadyDelivered(ctx context.Context, broadcastID string, recipientID int64) (bool, error) {
	if f.ledger == nil {
		return false, nil
	}
	return f.ledger.IsDelivered(ctx, broadcastID, recipientID)
}

func (f *Fanout) markDelivered(ctx context.Context, broadcastID string, recipientID int64) {
	if f.ledger == nil {
		return
	}
	if err := f.ledger.MarkDelivered(ctx, broadcastID, recipientID); err != nil {
		f.logger.WarnContext(ctx, "failed to record delivery outcome",
			logger.BroadcastID(broadcastID),
			slog.Int64("recipient_id", recipientID),
			logger.Error(err))
	}
}

// pace waits the configured inter-send interval or returns early when the
// context is cancelled.
func (f *Fanout) pace(ctx context.Context) error {
	if f.pacing <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.pacing):
		return nil
	}
}
