// Package suggest proposes alternative tour slots when a requested interval
// is not available.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"time"

	availability "tourbook/internal/availability/service"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/metrics"
	"tourbook/pkg/model"
)

type Result struct {
	Slots           []model.Interval `json:"suggested_slots"`
	HasAvailability bool             `json:"has_availability"`
}

// Details renders r for an error payload.
func (r *Result) Details() map[string]any {
	return map[string]any{
		"suggested_slots":  r.Slots,
		"has_availability": r.HasAvailability,
	}
}

type Suggester interface {
	// Suggest returns up to max intervals with the requested duration, nearest
	// to requestedStart first. max <= 0 uses the configured default.
	Suggest(ctx context.Context, user model.UserRef, requestedStart, requestedEnd time.Time, max int) (*Result, error)
}

type suggester struct {
	checker availability.Checker
	prefs   availability.PreferenceSource
	clock   clock.Clock
	cfg     *config.Config
}

func NewSuggester(checker availability.Checker, prefs availability.PreferenceSource, clk clock.Clock, cfg *config.Config) Suggester {
	return &suggester{
		checker: checker,
		prefs:   prefs,
		clock:   clk,
		cfg:     cfg,
	}
}

func (s *suggester) Suggest(ctx context.Context, user model.UserRef, requestedStart, requestedEnd time.Time, max int) (*Result, error) {
	started := time.Now()
	defer func() { metrics.ObserveSuggestionSearch(time.Since(started)) }()

	requested := model.NewInterval(requestedStart, requestedEnd)
	if !requested.Valid() {
		return nil, apperrors.Validation("End time must be after start time", nil)
	}
	if max <= 0 {
		max = s.cfg.MaxSuggestions
	}

	prefs, err := s.prefs.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	loc, err := prefs.Location()
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Unknown time zone %q", prefs.TimeZone), nil)
	}
	dayStart, err := model.ParseClock(prefs.WorkingHours.Start)
	if err != nil {
		return nil, apperrors.Internal("Stored working hours are invalid", err)
	}
	dayEnd, err := model.ParseClock(prefs.WorkingHours.End)
	if err != nil {
		return nil, apperrors.Internal("Stored working hours are invalid", err)
	}

	duration := requested.Duration()
	step := duration
	if prefs.SlotLength() > step {
		step = prefs.SlotLength()
	}

	// One read for the whole search; the suggester holds no lock.
	now := s.clock.Now()
	snap, err := s.checker.Snapshot(ctx, user, now, now.Add(s.cfg.BookingHorizon).Add(duration))
	if err != nil {
		return nil, err
	}

	var found []model.Interval
	last := snap.HorizonEnd().In(loc)
	first := snap.Now().In(loc)
	for day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		if !prefs.WorksOn(day.Weekday()) {
			continue
		}
		open := wallClock(day, dayStart)
		closing := wallClock(day, dayEnd)

		for start := open; !start.Add(duration).After(closing); start = start.Add(step) {
			candidate := model.NewInterval(start, start.Add(duration))
			if snap.Check(candidate.StartAt, candidate.EndAt).Available {
				found = append(found, candidate)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		di := absDuration(found[i].StartAt.Sub(requested.StartAt))
		dj := absDuration(found[j].StartAt.Sub(requested.StartAt))
		if di != dj {
			return di < dj
		}
		return found[i].StartAt.Before(found[j].StartAt)
	})
	if len(found) > max {
		found = found[:max]
	}

	s.cfg.Log.Debug("Suggestion search completed",
		"user", user.Key(),
		"requested", requested.String(),
		"found", len(found),
		"duration", time.Since(started),
	)

	if found == nil {
		found = []model.Interval{}
	}
	return &Result{Slots: found, HasAvailability: len(found) > 0}, nil
}

// wallClock places minutes-after-midnight on day's local clock, so working
// hours keep their wall time across DST changes.
func wallClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
