// Package broadcast turns one broadcast job into per-recipient message
// deliveries over a pluggable channel. It resolves the audience and the
// language-keyed content through a Repository, sends sequentially with pacing
// through a Sender, and tallies classified outcomes (sent, blocked,
// deactivated, failed) as the job result.
//
// Delivery errors never fail the broadcast job; a job fails only when the
// audience or content cannot be resolved, which is exactly the case where a
// queue-level retry can help. A rate-limited send waits the duration the
// channel advertised and retries once.
//
// An optional Ledger records which recipients a broadcast already reached, so
// a retried job resumes instead of resending to the whole audience. Skipped
// recipients still count as sent, keeping the outcome counts equal to the
// audience size.
//
//	fanout, err := broadcast.NewFanout(repo, sender,
//		broadcast.WithLedger(ledger),
//	)
//	service.RegisterHandlers(
//		fanout.SendBroadcastHandler(),
//		fanout.SendSegmentBroadcastHandler(),
//	)
package broadcast
