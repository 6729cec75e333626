package broadcast

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("broadcast repository cannot be nil")

	// ErrSenderNil is returned when a nil sender is provided.
	ErrSenderNil = errors.New("broadcast sender cannot be nil")

	// ErrEmptyBroadcastID is returned when a fan-out job carries no broadcast id.
	ErrEmptyBroadcastID = errors.New("broadcast id cannot be empty")

	// ErrNoContent is returned when a broadcast has no text in any language.
	ErrNoContent = errors.New("broadcast has no content")

	// ErrRecipientBlocked marks a delivery rejected because the recipient
	// blocked the bot.
	ErrRecipientBlocked = errors.New("recipient blocked the bot")

	// ErrRecipientDeactivated marks a delivery rejected because the recipient
	// account no longer exists.
	ErrRecipientDeactivated = errors.New("recipient account is deactivated")
)

// RateLimitedError reports that the delivery channel asked us to slow down.
// The fan-out waits RetryAfter and retries the send once.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimited unwraps err to a RateLimitedError if one is in its chain.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
