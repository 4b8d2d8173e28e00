package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// probe describes how startup waits for a backend that may still be booting
// in a neighbouring container.
type probe struct {
	name     string
	attempts int
	backoff  time.Duration
	maxWait  time.Duration
	timeout  time.Duration
}

var defaultProbe = probe{
	attempts: 10,
	backoff:  time.Second,
	maxWait:  30 * time.Second,
	timeout:  5 * time.Second,
}

// waitReady calls ping until it succeeds, doubling the pause between
// attempts. It gives up early when ctx is done.
func (p probe) waitReady(ctx context.Context, ping func(context.Context) error) error {
	wait := p.backoff
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
		lastErr = ping(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}

		slog.Warn(p.name+" not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", lastErr),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", p.name, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, p.maxWait)
	}
	return fmt.Errorf("pinging %s after %d attempts: %w", p.name, p.attempts, lastErr)
}
