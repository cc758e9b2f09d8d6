package db

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrVersionConflict is returned when an optimistic version check loses a race.
var ErrVersionConflict = pkgerrors.New(pkgerrors.CodeConflict, "concurrent update, please retry")

// RetryPolicy bounds how often a transaction is replayed after a version conflict.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	// OnRetry runs before each replay with the 1-based attempt that failed.
	OnRetry func(attempt int)
}

// RetryOnConflict runs fn until it succeeds, fails with anything other than
// ErrVersionConflict, or the attempt budget is spent.
func RetryOnConflict[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.WithJitterPercent(20, retry.NewExponential(base)))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && errors.Is(err, ErrVersionConflict) {
			if policy.OnRetry != nil && uint64(attempt) < attempts {
				policy.OnRetry(attempt)
			}
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}
