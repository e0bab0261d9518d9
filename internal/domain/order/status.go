package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotMaterialized means no order appeared for the session within the
// polling budget. Callers must treat it as inconclusive, not as failed:
// settlement is asynchronous and may still complete afterwards.
var ErrNotMaterialized = errors.New("order not materialized yet")

const (
	defaultStatusAttempts = 5
	defaultStatusDelay    = time.Second
)

// StatusBridge absorbs the latency between payment confirmation and
// asynchronous settlement by polling for the resulting order.
type StatusBridge struct {
	orders   Repository
	attempts int
	delay    time.Duration
}

// NewStatusBridge returns a StatusBridge polling up to attempts times with a
// fixed delay between attempts. Non-positive values fall back to the defaults
// (5 attempts, 1s delay).
func NewStatusBridge(orders Repository, attempts int, delay time.Duration) *StatusBridge {
	if attempts <= 0 {
		attempts = defaultStatusAttempts
	}
	if delay <= 0 {
		delay = defaultStatusDelay
	}
	return &StatusBridge{orders: orders, attempts: attempts, delay: delay}
}

// WaitForOrder polls for an order with the given checkout session id. It
// fails closed: context cancellation during a wait returns
// ErrNotMaterialized, never a fabricated order.
func (b *StatusBridge) WaitForOrder(ctx context.Context, sessionID string) (*Order, error) {
	timer := time.NewTimer(b.delay)
	defer timer.Stop()

	for attempt := 0; attempt < b.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ErrNotMaterialized, "wait interrupted")
			case <-timer.C:
				timer.Reset(b.delay)
			}
		}

		o, err := b.orders.GetBySessionID(ctx, sessionID)
		switch {
		case err == nil:
			return o, nil
		case errors.Is(err, ErrNotFound):
			continue
		default:
			return nil, errors.Wrap(err, "poll order")
		}
	}

	return nil, ErrNotMaterialized
}
