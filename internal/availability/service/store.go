package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "tourbook/internal/availability/errors"
	"tourbook/internal/availability/repository"
	"tourbook/internal/availability/validator"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/lock"
	"tourbook/pkg/model"
	"tourbook/pkg/retry"
	"tourbook/pkg/validation"
)

const dayLayout = "2006-01-02"

// PreferenceSource supplies a user's calendar preferences, falling back to
// defaults when none are stored.
type PreferenceSource interface {
	Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error)
}

type Store interface {
	// Upsert creates or updates a manual slot owned by actor.
	Upsert(ctx context.Context, actor model.Actor, slot *model.AvailabilitySlot) (*model.AvailabilitySlot, error)
	Query(ctx context.Context, user model.UserRef, from, to time.Time) ([]*model.AvailabilitySlot, error)
	Delete(ctx context.Context, actor model.Actor, slotID string) error
	// MarkDayOff blocks the whole local day (YYYY-MM-DD) in the user's time zone.
	MarkDayOff(ctx context.Context, actor model.Actor, user model.UserRef, day, title string) (*model.AvailabilitySlot, error)

	// Hold and Release maintain the slot derived from an approved booking.
	// They run inside the caller's transaction and are never retried here.
	Hold(ctx context.Context, booking *model.Booking) (*model.AvailabilitySlot, error)
	Release(ctx context.Context, bookingID string) (int64, error)
	BookingSlots(ctx context.Context) ([]*model.AvailabilitySlot, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type store struct {
	repo      repository.SlotRepository
	prefs     PreferenceSource
	locker    lock.Locker
	validator *validator.SlotValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewStore(repo repository.SlotRepository, prefs PreferenceSource, locker lock.Locker, validator *validator.SlotValidator, clk clock.Clock, cfg *config.Config) Store {
	return &store{
		repo:      repo,
		prefs:     prefs,
		locker:    locker,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *store) Upsert(ctx context.Context, actor model.Actor, slot *model.AvailabilitySlot) (*model.AvailabilitySlot, error) {
	if slot == nil {
		return nil, apperrors.InvalidInput("slot is required")
	}
	if slot.Source == "" {
		slot.Source = model.SourceManual
	}
	if slot.Source == model.SourceBooking || slot.SlotType == model.SlotBooking || slot.BookingID != "" {
		s.cfg.Log.Warn("Rejected write of booking-sourced slot", "actor", actor.Key(), "slot_id", slot.ID)
		return nil, apperrors.Forbidden("Booking slots follow booking state and cannot be edited directly")
	}
	if !s.mayWrite(actor, slot.User()) {
		return nil, apperrors.Forbidden("Only the calendar owner may change its availability")
	}

	slot.StartAt = slot.StartAt.UTC()
	slot.EndAt = slot.EndAt.UTC()
	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Availability slot validation failed",
			"user", slot.User().Key(),
			"error", err,
		)
		return nil, validation.ToAppError(err)
	}

	var saved *model.AvailabilitySlot
	err := lock.Within(ctx, s.locker, slot.User().Key(), func(ctx context.Context) error {
		var err error
		saved, err = s.upsertLocked(ctx, slot)
		return err
	})
	if err != nil {
		return nil, s.mapError(err, "upsert", slot.User())
	}

	s.cfg.Log.Info("Availability slot saved",
		"slot_id", saved.ID,
		"user", saved.User().Key(),
		"slot_type", saved.SlotType,
		"start_at", saved.StartAt,
		"end_at", saved.EndAt,
	)
	return saved, nil
}

func (s *store) upsertLocked(ctx context.Context, slot *model.AvailabilitySlot) (*model.AvailabilitySlot, error) {
	now := s.clock.Now()

	if slot.ID != "" {
		existing, err := s.repo.FindByID(ctx, slot.ID)
		if err != nil {
			return nil, err
		}
		if existing.Source == model.SourceBooking {
			return nil, apperrors.Forbidden("Booking slots follow booking state and cannot be edited directly")
		}
		if existing.User() != slot.User() {
			return nil, apperrors.Forbidden("Slot belongs to another calendar")
		}
		slot.CreatedAt = existing.CreatedAt
		slot.UpdatedAt = now
		if err := s.repo.Update(ctx, slot); err != nil {
			return nil, err
		}
		return slot, nil
	}

	identical, err := s.repo.FindIdentical(ctx, slot.User(), slot.SlotType, slot.StartAt, slot.EndAt)
	switch {
	case err == nil:
		identical.Title = slot.Title
		identical.UpdatedAt = now
		if err := s.repo.Update(ctx, identical); err != nil {
			return nil, err
		}
		return identical, nil
	case !errors.Is(err, availabilityerrors.ErrNotFound):
		return nil, err
	}

	slot.CreatedAt = now
	slot.UpdatedAt = now
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *store) Query(ctx context.Context, user model.UserRef, from, to time.Time) ([]*model.AvailabilitySlot, error) {
	if !user.Type.Valid() || user.ID == "" {
		return nil, apperrors.InvalidInput("user_id and user_type (manager|agent) are required")
	}
	if !from.Before(to) {
		return nil, apperrors.Validation("from must be before to", nil)
	}

	slots, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.AvailabilitySlot, error) {
		return s.repo.FindOverlapping(ctx, user, from.UTC(), to.UTC(), nil)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to query availability", "user", user.Key(), "error", err)
		return nil, retry.ToAppError("Availability storage", err)
	}
	if slots == nil {
		slots = []*model.AvailabilitySlot{}
	}
	return slots, nil
}

func (s *store) Delete(ctx context.Context, actor model.Actor, slotID string) error {
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		return s.mapError(err, "delete", model.UserRef{})
	}
	if slot.Source == model.SourceBooking {
		return apperrors.Forbidden("Booking slots are removed by cancelling the booking")
	}
	if !s.mayWrite(actor, slot.User()) {
		return apperrors.Forbidden("Only the calendar owner may change its availability")
	}

	if err := s.repo.Delete(ctx, slotID); err != nil {
		return s.mapError(err, "delete", slot.User())
	}

	s.cfg.Log.Info("Availability slot deleted", "slot_id", slotID, "user", slot.User().Key())
	return nil
}

func (s *store) MarkDayOff(ctx context.Context, actor model.Actor, user model.UserRef, day, title string) (*model.AvailabilitySlot, error) {
	prefs, err := s.prefs.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	loc, err := prefs.Location()
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Unknown time zone %q", prefs.TimeZone), nil)
	}

	date, err := time.ParseInLocation(dayLayout, day, loc)
	if err != nil {
		return nil, apperrors.Validation("day must be YYYY-MM-DD", map[string]any{"day": day})
	}
	start, end := DayBounds(date, loc)

	if title == "" {
		title = "Day off"
	}
	return s.Upsert(ctx, actor, &model.AvailabilitySlot{
		UserID:   user.ID,
		UserType: user.Type,
		StartAt:  start,
		EndAt:    end,
		SlotType: model.SlotUnavailable,
		Source:   model.SourceManual,
		Title:    title,
	})
}

// DayBounds returns local 00:00:00 and 23:59:59 of date's calendar day in
// loc, converted to UTC.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return start.UTC(), end.UTC()
}

func (s *store) Hold(ctx context.Context, booking *model.Booking) (*model.AvailabilitySlot, error) {
	now := s.clock.Now()
	slot := &model.AvailabilitySlot{
		UserID:    booking.AssignedUser.ID,
		UserType:  booking.AssignedUser.Type,
		StartAt:   booking.StartAt.UTC(),
		EndAt:     booking.EndAt.UTC(),
		SlotType:  model.SlotBooking,
		Source:    model.SourceBooking,
		BookingID: booking.ID,
		Title:     "Tour " + booking.PropertyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("failed to hold booking slot: %w", err)
	}
	return slot, nil
}

func (s *store) Release(ctx context.Context, bookingID string) (int64, error) {
	n, err := s.repo.DeleteByBookingID(ctx, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to release booking slot: %w", err)
	}
	return n, nil
}

func (s *store) BookingSlots(ctx context.Context) ([]*model.AvailabilitySlot, error) {
	slots, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.AvailabilitySlot, error) {
		return s.repo.FindBookingSourced(ctx, 0)
	})
	if err != nil {
		return nil, retry.ToAppError("Availability storage", err)
	}
	return slots, nil
}

func (s *store) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) (int64, error) {
		return s.repo.DeleteEndedBefore(ctx, []model.SlotSource{model.SourceManual, model.SourceSystem}, before)
	})
	if err != nil {
		return 0, retry.ToAppError("Availability storage", err)
	}
	return n, nil
}

func (s *store) mayWrite(actor model.Actor, owner model.UserRef) bool {
	return actor.Kind == model.ActorSystem || actor.Is(owner)
}

func (s *store) mapError(err error, op string, user model.UserRef) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, lock.ErrBusy):
		s.cfg.Log.Warn("Calendar is busy", "operation", op, "user", user.Key())
		return apperrors.Busy("Calendar is being updated, please retry")
	case errors.Is(err, availabilityerrors.ErrNotFound):
		return apperrors.NotFound("Availability slot")
	case errors.Is(err, availabilityerrors.ErrInvalidID):
		return apperrors.InvalidInput("invalid availability slot ID format")
	}

	s.cfg.Log.Error("Availability storage failure", "operation", op, "user", user.Key(), "error", err)
	return retry.ToAppError("Availability storage", err)
}
