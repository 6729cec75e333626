// Package redis provides Redis client initialization with retry logic and
// the recipient-outcome delivery ledger for broadcast retries.
//
// Connect validates the connection URL, dials with retries and verifies
// connectivity with a ping before returning the client. Both redis:// and
// rediss:// (TLS) URL schemes are supported.
//
// Ledger implements broadcast.Ledger: each successful send is recorded under
// a (broadcast, recipient) key with a TTL, and a retried broadcast job checks
// the key before sending. Losing the ledger only means some recipients may
// receive the message twice on retry.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ledger, err := redis.NewLedger(client, cfg.LedgerTTL)
//	fanout, err := broadcast.NewFanout(repo, sender, broadcast.WithLedger(ledger))
package redis
