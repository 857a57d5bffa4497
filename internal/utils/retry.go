package utils

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/sustena-platforms/julctl/internal/models"
)

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// WithRetry calls fn until it succeeds, fails with anything other than a
// NetworkError, or maxRetries retries have been spent. Backoff doubles from
// 250ms up to 5s.
func WithRetry[T any](ctx context.Context, op string, maxRetries uint, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := initialBackoff
	for attempt := uint(0); ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !models.IsNetwork(err) || attempt >= maxRetries {
			return zero, errors.WithMessagef(err, "%s failed after %d attempt(s)", op, attempt+1)
		}
		slog.Warn("Retrying ledger call", "op", op, "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
