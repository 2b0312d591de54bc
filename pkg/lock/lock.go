// Package lock provides the per-calendar serializing scope used around
// check-then-write operations.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when the scope could not be entered before the wait
// budget ran out.
var ErrBusy = errors.New("lock: scope is busy")

// Unlock releases a held scope. Calling it more than once is safe.
type Unlock func()

type Locker interface {
	// Acquire blocks until key is held, the timeout elapses (ErrBusy) or ctx
	// is done.
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// Leaser is implemented by lockers whose hold expires on its own after
// Lease, so a crashed holder cannot wedge a calendar.
type Leaser interface {
	Lease() time.Duration
}

// usableLease is how long work inside a leased scope may run. The rest of the
// lease is slack for the commit round trip and clock skew between nodes.
func usableLease(lease time.Duration) time.Duration {
	return lease - lease/5
}

const (
	minPollInterval = 5 * time.Millisecond
	maxPollInterval = 100 * time.Millisecond
)

// poll retries try with a capped exponential backoff until it reports true,
// the deadline passes or ctx is done.
func poll(ctx context.Context, timeout time.Duration, try func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	interval := minPollInterval

	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrBusy
		}

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxPollInterval)
	}
}

func once(fn func()) Unlock {
	var o sync.Once
	return func() { o.Do(fn) }
}
