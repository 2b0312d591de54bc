package service

import (
	"context"
	"time"

	"tourbook/internal/availability/repository"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/retry"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInvalidInterval Reason = "invalid_interval"
	ReasonPast            Reason = "past"
	ReasonBeyondHorizon   Reason = "beyond_horizon"
	ReasonOverlap         Reason = "overlap"
)

// Verdict explains why an interval can or cannot be booked.
type Verdict struct {
	Available bool             `json:"available"`
	Reason    Reason           `json:"reason,omitempty"`
	Conflicts []model.Interval `json:"conflicts,omitempty"`
}

// Rejection maps an unavailable verdict onto an API error. Overlaps become
// CONFLICT; everything else is a validation failure.
func (v Verdict) Rejection() *apperrors.AppError {
	switch v.Reason {
	case ReasonNone:
		return nil
	case ReasonOverlap:
		return apperrors.Conflict("Requested time overlaps an existing commitment").
			WithDetails(map[string]any{"reason": string(v.Reason)})
	case ReasonPast:
		return apperrors.Validation("Requested start time is in the past", map[string]any{"reason": string(v.Reason)})
	case ReasonBeyondHorizon:
		return apperrors.Validation("Requested start time is beyond the booking horizon", map[string]any{"reason": string(v.Reason)})
	default:
		return apperrors.Validation("End time must be after start time", map[string]any{"reason": string(v.Reason)})
	}
}

// Snapshot is a point-in-time copy of one user's blocking intervals. It lets
// the suggester run the availability rules over many candidates without
// going back to storage.
type Snapshot struct {
	now      time.Time
	horizon  time.Time
	blocking []model.Interval
}

func NewSnapshot(now time.Time, horizon time.Duration, blocking []model.Interval) *Snapshot {
	return &Snapshot{
		now:      now,
		horizon:  now.Add(horizon),
		blocking: blocking,
	}
}

func (s *Snapshot) Now() time.Time {
	return s.now
}

// HorizonEnd is the latest instant a booking may start at.
func (s *Snapshot) HorizonEnd() time.Time {
	return s.horizon
}

func (s *Snapshot) Check(start, end time.Time) Verdict {
	interval := model.NewInterval(start, end)
	if !interval.Valid() {
		return Verdict{Reason: ReasonInvalidInterval}
	}
	if interval.StartAt.Before(s.now) {
		return Verdict{Reason: ReasonPast}
	}
	if interval.StartAt.After(s.horizon) {
		return Verdict{Reason: ReasonBeyondHorizon}
	}

	var conflicts []model.Interval
	for _, b := range s.blocking {
		if b.Overlaps(interval) {
			conflicts = append(conflicts, b)
		}
	}
	if len(conflicts) > 0 {
		return Verdict{Reason: ReasonOverlap, Conflicts: conflicts}
	}
	return Verdict{Available: true}
}

type Checker interface {
	IsAvailable(ctx context.Context, user model.UserRef, start, end time.Time) (bool, error)
	Check(ctx context.Context, user model.UserRef, start, end time.Time) (Verdict, error)
	// Snapshot loads the blocking intervals overlapping [from, to) once.
	Snapshot(ctx context.Context, user model.UserRef, from, to time.Time) (*Snapshot, error)
}

type checker struct {
	repo  repository.SlotRepository
	clock clock.Clock
	cfg   *config.Config
}

func NewChecker(repo repository.SlotRepository, clk clock.Clock, cfg *config.Config) Checker {
	return &checker{
		repo:  repo,
		clock: clk,
		cfg:   cfg,
	}
}

func (c *checker) IsAvailable(ctx context.Context, user model.UserRef, start, end time.Time) (bool, error) {
	verdict, err := c.Check(ctx, user, start, end)
	if err != nil {
		return false, err
	}
	return verdict.Available, nil
}

func (c *checker) Check(ctx context.Context, user model.UserRef, start, end time.Time) (Verdict, error) {
	interval := model.NewInterval(start, end)
	if !interval.Valid() {
		return Verdict{Reason: ReasonInvalidInterval}, nil
	}

	snap, err := c.Snapshot(ctx, user, interval.StartAt, interval.EndAt)
	if err != nil {
		return Verdict{}, err
	}
	return snap.Check(interval.StartAt, interval.EndAt), nil
}

func (c *checker) Snapshot(ctx context.Context, user model.UserRef, from, to time.Time) (*Snapshot, error) {
	slots, err := retry.DoValue(ctx, c.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.AvailabilitySlot, error) {
		return c.repo.FindOverlapping(ctx, user, from.UTC(), to.UTC(), model.BlockingSlotTypes)
	})
	if err != nil {
		c.cfg.Log.Error("Failed to load blocking slots",
			"user", user.Key(),
			"from", from,
			"to", to,
			"error", err,
		)
		return nil, retry.ToAppError("Availability storage", err)
	}

	blocking := make([]model.Interval, 0, len(slots))
	for _, s := range slots {
		blocking = append(blocking, s.Interval())
	}
	return NewSnapshot(c.clock.Now(), c.cfg.BookingHorizon, blocking), nil
}
