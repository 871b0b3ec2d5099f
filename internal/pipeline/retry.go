package pipeline

import (
	"context"
	"time"
)

// Backoff schedule for index writes and embedding calls. The delay starts at
// InitialDelay and doubles after each failure; the call gives up once the
// next delay would exceed MaxDelay. With 1ms..1000ms that is 11 attempts
// (delays 1,2,4,...,512, then 1024 aborts).
const (
	InitialDelay = 1 * time.Millisecond
	MaxDelay     = 1000 * time.Millisecond
)

// withBackoff executes fn under the capped exponential backoff schedule.
// The last error propagates once the schedule is exhausted. Context
// cancellation stops retrying immediately.
func withBackoff(ctx context.Context, fn func() error) error {
	delay := InitialDelay
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delay > MaxDelay {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
