package broadcast

import (
	"log/slog"
	"time"
)

// FanoutOption is a functional option for configuring a fan-out processor.
type FanoutOption func(*Fanout)

// WithPacing sets the delay between consecutive sends. Zero disables pacing,
// which is useful in tests.
func WithPacing(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		if d >= 0 {
			f.pacing = d
		}
	}
}

// WithLedger enables the per-recipient delivery ledger so retried broadcast
// jobs skip recipients who were already reached.
func WithLedger(ledger Ledger) FanoutOption {
	return func(f *Fanout) {
		f.ledger = ledger
	}
}

// WithLogger configures structured logging for fan-out operations.
func WithLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		if logger != nil {
			f.logger = logger
		}
	}
}
