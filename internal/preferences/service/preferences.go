package service

import (
	"context"
	"errors"
	"slices"

	"tourbook/internal/preferences/cache"
	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/internal/preferences/repository"
	"tourbook/internal/preferences/validator"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/retry"
	"tourbook/pkg/validation"

	"golang.org/x/sync/singleflight"
)

type PreferencesService interface {
	// Get returns the stored preferences, or the configured defaults when the
	// user never saved any.
	Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error)
	Update(ctx context.Context, actor model.Actor, prefs *model.CalendarPreferences) (*model.CalendarPreferences, error)
}

type preferencesService struct {
	repo      repository.PreferencesRepository
	cache     cache.Cache
	validator *validator.PreferencesValidator
	clock     clock.Clock
	cfg       *config.Config
	loads     singleflight.Group
}

func NewPreferencesService(repo repository.PreferencesRepository, cache cache.Cache, validator *validator.PreferencesValidator, clk clock.Clock, cfg *config.Config) PreferencesService {
	return &preferencesService{
		repo:      repo,
		cache:     cache,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *preferencesService) Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	if user.ID == "" || !user.Type.Valid() {
		return nil, apperrors.InvalidInput("user_id and user_type (manager|agent) are required")
	}

	prefs, err := s.cache.Get(ctx, user)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, preferenceserrors.ErrCacheMiss) {
		s.cfg.Log.Warn("Preferences cache read failed", "user", user.Key(), "error", err)
	}

	v, err, _ := s.loads.Do(user.Key(), func() (any, error) {
		return s.load(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	loaded := *v.(*model.CalendarPreferences)
	loaded.WorkingDays = slices.Clone(loaded.WorkingDays)
	return &loaded, nil
}

func (s *preferencesService) load(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	prefs, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) (*model.CalendarPreferences, error) {
		return s.repo.FindByUser(ctx, user)
	})
	switch {
	case errors.Is(err, preferenceserrors.ErrNotFound):
		prefs = s.defaults(user)
	case err != nil:
		s.cfg.Log.Error("Failed to load calendar preferences", "user", user.Key(), "error", err)
		return nil, retry.ToAppError("Preferences storage", err)
	}

	if err := s.cache.Set(ctx, prefs); err != nil {
		s.cfg.Log.Warn("Preferences cache write failed", "user", user.Key(), "error", err)
	}
	return prefs, nil
}

func (s *preferencesService) defaults(user model.UserRef) *model.CalendarPreferences {
	return &model.CalendarPreferences{
		UserID:                   user.ID,
		UserType:                 user.Type,
		TimeZone:                 s.cfg.DefaultTimeZone,
		DefaultSlotLengthMinutes: s.cfg.DefaultSlotLength,
		WorkingHours: model.WorkingHours{
			Start: s.cfg.DefaultStartOfDay,
			End:   s.cfg.DefaultEndOfDay,
		},
		WorkingDays: slices.Clone(s.cfg.DefaultWorkingDays),
	}
}

func (s *preferencesService) Update(ctx context.Context, actor model.Actor, prefs *model.CalendarPreferences) (*model.CalendarPreferences, error) {
	if prefs == nil {
		return nil, apperrors.InvalidInput("preferences are required")
	}
	if !actor.Is(prefs.User()) {
		return nil, apperrors.Forbidden("Only the calendar owner may change its preferences")
	}

	if err := s.validator.Validate(prefs); err != nil {
		s.cfg.Log.Warn("Preferences validation failed", "user", prefs.User().Key(), "error", err)
		return nil, validation.ToAppError(err)
	}

	slices.Sort(prefs.WorkingDays)
	prefs.UpdatedAt = s.clock.Now()

	err := retry.Do(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) error {
		return s.repo.Upsert(ctx, prefs)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to save calendar preferences", "user", prefs.User().Key(), "error", err)
		return nil, retry.ToAppError("Preferences storage", err)
	}

	// Later reads must not join a load that started before this write.
	s.loads.Forget(prefs.User().Key())
	if err := s.cache.Invalidate(ctx, prefs.User()); err != nil {
		s.cfg.Log.Warn("Preferences cache invalidation failed", "user", prefs.User().Key(), "error", err)
	}

	s.cfg.Log.Info("Calendar preferences updated",
		"user", prefs.User().Key(),
		"timezone", prefs.TimeZone,
		"slot_length", prefs.DefaultSlotLengthMinutes,
	)
	return prefs, nil
}
