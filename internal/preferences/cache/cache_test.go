package cache

import (
	"context"
	"testing"
	"time"

	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/pkg/clock"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = model.UserRef{ID: "mgr-1", Type: model.UserTypeManager}

func samplePrefs() *model.CalendarPreferences {
	return &model.CalendarPreferences{
		UserID:                   owner.ID,
		UserType:                 owner.Type,
		TimeZone:                 "Europe/Berlin",
		DefaultSlotLengthMinutes: 45,
		WorkingHours:             model.WorkingHours{Start: "08:00", End: "16:00"},
		WorkingDays:              []time.Weekday{time.Monday, time.Tuesday},
	}
}

func TestMemory_MissThenHit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, clock.NewManual(time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)))

	_, err := m.Get(ctx, owner)
	assert.ErrorIs(t, err, preferenceserrors.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, samplePrefs()))
	got, err := m.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", got.TimeZone)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_EntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, nil)

	prefs := samplePrefs()
	require.NoError(t, m.Set(ctx, prefs))
	prefs.WorkingDays[0] = time.Sunday

	got, err := m.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, got.WorkingDays[0])

	got.WorkingDays[1] = time.Saturday
	again, err := m.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, again.WorkingDays[1])
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC))
	m := NewMemory(time.Minute, clk)
	require.NoError(t, m.Set(ctx, samplePrefs()))

	clk.Advance(59 * time.Second)
	_, err := m.Get(ctx, owner)
	assert.NoError(t, err)

	clk.Advance(time.Second)
	_, err = m.Get(ctx, owner)
	assert.ErrorIs(t, err, preferenceserrors.ErrCacheMiss)
}

func TestMemory_Invalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, nil)
	require.NoError(t, m.Set(ctx, samplePrefs()))

	other := model.UserRef{ID: "mgr-1", Type: model.UserTypeAgent}
	require.NoError(t, m.Invalidate(ctx, other))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Invalidate(ctx, owner))
	_, err := m.Get(ctx, owner)
	assert.ErrorIs(t, err, preferenceserrors.ErrCacheMiss)
	assert.Zero(t, m.Len())
}
