// Package cache keeps calendar preferences close to the suggester. Entries
// are keyed by (user_type, user_id) and dropped whenever preferences change.
package cache

import (
	"context"
	"sync"
	"time"

	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/pkg/clock"
	"tourbook/pkg/model"
)

type Cache interface {
	// Get returns ErrCacheMiss when nothing fresh is stored for user.
	Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error)
	Set(ctx context.Context, prefs *model.CalendarPreferences) error
	Invalidate(ctx context.Context, user model.UserRef) error
}

type entry struct {
	prefs     model.CalendarPreferences
	expiresAt time.Time
}

// Memory is a per-process cache. It belongs to whoever constructs it and is
// discarded with them.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
}

func NewMemory(ttl time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.System()
	}
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clk,
	}
}

func (m *Memory) Get(_ context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	m.mu.RLock()
	e, ok := m.entries[user.Key()]
	m.mu.RUnlock()

	if !ok || !m.clock.Now().Before(e.expiresAt) {
		return nil, preferenceserrors.ErrCacheMiss
	}
	prefs := e.prefs
	prefs.WorkingDays = append([]time.Weekday(nil), e.prefs.WorkingDays...)
	return &prefs, nil
}

func (m *Memory) Set(_ context.Context, prefs *model.CalendarPreferences) error {
	stored := *prefs
	stored.WorkingDays = append([]time.Weekday(nil), prefs.WorkingDays...)

	m.mu.Lock()
	m.entries[prefs.User().Key()] = entry{prefs: stored, expiresAt: m.clock.Now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, user model.UserRef) error {
	m.mu.Lock()
	delete(m.entries, user.Key())
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
