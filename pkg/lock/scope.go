package lock

import (
	"context"
	"time"

	"tourbook/pkg/metrics"
)

// Within runs fn while holding key. The wait for the scope is recorded in the
// lock wait histogram; ErrBusy is returned untouched so callers can map it.
//
// For leased lockers fn's context ends before the lease does. A holder that
// overruns has its writes aborted instead of committing after another holder
// may have taken the key.
func Within(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	start := time.Now()
	unlock, err := l.Acquire(ctx, key)
	metrics.ObserveLockWait(time.Since(start), err)
	if err != nil {
		return err
	}
	defer unlock()

	if leaser, ok := l.(Leaser); ok && leaser.Lease() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, usableLease(leaser.Lease()))
		defer cancel()
	}

	return fn(ctx)
}
