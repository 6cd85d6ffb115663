package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datkrb/resfood-payments/internal/domain"
)

// boundedCall runs fn with a deadline of d. A deadline hit is reported as
// domain.ErrStoreUnavailable so callers can treat it as retryable.
func boundedCall[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return v, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return v, err
}

func boundedExec(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := boundedCall(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
