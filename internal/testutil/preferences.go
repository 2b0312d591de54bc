package testutil

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/pkg/model"
)

type PreferencesRepository struct {
	mu    sync.Mutex
	prefs map[string]model.CalendarPreferences

	// Reads counts FindByUser calls.
	Reads atomic.Int64
}

func NewPreferencesRepository() *PreferencesRepository {
	return &PreferencesRepository{prefs: make(map[string]model.CalendarPreferences)}
}

func (r *PreferencesRepository) FindByUser(_ context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	r.Reads.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prefs[user.Key()]
	if !ok {
		return nil, preferenceserrors.ErrNotFound
	}
	p.WorkingDays = slices.Clone(p.WorkingDays)
	return &p, nil
}

func (r *PreferencesRepository) Upsert(_ context.Context, prefs *model.CalendarPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *prefs
	stored.WorkingDays = slices.Clone(prefs.WorkingDays)
	r.prefs[prefs.User().Key()] = stored
	return nil
}
