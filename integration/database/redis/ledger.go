package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultLedgerTTL keeps delivery records around long enough to cover any
// realistic retry window; cleanup retention for jobs is a week too.
const DefaultLedgerTTL = 7 * 24 * time.Hour

// Ledger records per-recipient broadcast delivery outcomes in Redis so a
// retried broadcast job skips recipients who already got the message. Keys
// expire after the configured TTL; Redis being unavailable degrades to
// resending, never to losing deliveries.
type Ledger struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewLedger creates a delivery ledger on the given client. A non-positive ttl
// falls back to DefaultLedgerTTL.
func NewLedger(client *goredis.Client, ttl time.Duration) (*Ledger, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &Ledger{client: client, ttl: ttl}, nil
}

// IsDelivered reports whether a recipient already received this broadcast.
func (l *Ledger) IsDelivered(ctx context.Context, broadcastID string, recipientID int64) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKey(broadcastID, recipientID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery record: %w", err)
	}
	return n > 0, nil
}

// MarkDelivered records a successful delivery to a recipient.
func (l *Ledger) MarkDelivered(ctx context.Context, broadcastID string, recipientID int64) error {
	if err := l.client.Set(ctx, ledgerKey(broadcastID, recipientID), 1, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// ClearBroadcast removes all delivery records for one broadcast, forcing the
// next retry to resend to the full audience.
func (l *Ledger) ClearBroadcast(ctx context.Context, broadcastID string) (int64, error) {
	var deleted int64
	var cursor uint64
	pattern := fmt.Sprintf("broadcast:delivered:%s:*", broadcastID)

	for {
		keys, next, err := l.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan delivery records: %w", err)
		}
		if len(keys) > 0 {
			n, err := l.client.Del(ctx, keys...).Result()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return deleted, fmt.Errorf("failed to delete delivery records: %w", err)
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func ledgerKey(broadcastID string, recipientID int64) string {
	return fmt.Sprintf("broadcast:delivered:%s:%d", broadcastID, recipientID)
}
