package gateway

import (
	"context"
	"fmt"
	"time"

	"quantbot-go/internal/metrics"
)

// Retrier wraps transient venue calls with a fixed attempt count and delay.
// Exhaustion is a skip-this-cycle condition for the caller, never fatal.
type Retrier struct {
	Attempts int
	Delay    time.Duration
}

// Do runs op until it succeeds, the attempts are exhausted, or ctx is done.
func (r Retrier) Do(ctx context.Context, label string, op func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		metrics.GatewayRetries.WithLabelValues(label).Inc()
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, attempts, lastErr)
}
