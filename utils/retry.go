package utils

import (
	"context"
	"time"
)

// RetryRead runs a read-only operation, retrying transient store errors with
// exponential backoff. Never use it for writes: a retried write needs a
// deduplication key.
func RetryRead(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || !IsKind(err, KindTransient) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
