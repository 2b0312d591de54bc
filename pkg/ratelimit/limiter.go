package ratelimit

import (
	"sync"
	"time"

	"tourbook/pkg/clock"
)

// Limiter is a sliding-window counter keyed by an arbitrary string, such as a
// caller phone or an actor key.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	clock    clock.Clock
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(limit int, window time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.System()
	}
	return &Limiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		clock:    clk,
		stopCh:   make(chan struct{}),
	}
}

// StartCleanup evicts idle keys every interval until Stop is called.
func (l *Limiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.evict()
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Limiter) evict() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, timestamps := range l.requests {
		if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) >= l.window {
			delete(l.requests, key)
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow records one event for key and reports whether it fits the window.
// An empty key is never limited.
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < l.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= l.limit {
		l.requests[key] = valid
		return false
	}

	l.requests[key] = append(valid, now)
	return true
}
