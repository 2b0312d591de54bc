// Package retry re-runs storage calls that failed for transient reasons.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "tourbook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrExhausted wraps the last error once every attempt failed transiently.
var ErrExhausted = errors.New("retry: attempts exhausted")

type Policy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Backoff: 50 * time.Millisecond, MaxBackoff: time.Second}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient flags err as safe to retry.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth another attempt: network errors,
// server timeouts, transient transaction labels and errors marked by
// MarkTransient. Context cancellation never is.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("RetryableWriteError")
	}
	return false
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	backoff := p.Backoff

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-timer.C:
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// ToAppError maps a storage failure for resource onto the API error kinds:
// exhausted retries become SERVICE_UNAVAILABLE, anything else is internal.
// AppErrors pass through unchanged.
func ToAppError(resource string, err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, ErrExhausted) {
		return apperrors.Unavailable(resource, err)
	}
	return apperrors.Internal(fmt.Sprintf("Failed to access %s", resource), err)
}
