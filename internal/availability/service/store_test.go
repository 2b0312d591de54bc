package service

import (
	"context"
	"testing"
	"time"

	"tourbook/internal/availability/validator"
	"tourbook/internal/testutil"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/lock"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefsFunc func(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error)

func (f prefsFunc) Get(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	return f(ctx, user)
}

func zonePrefs(zone string) PreferenceSource {
	return prefsFunc(func(_ context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
		return &model.CalendarPreferences{UserID: user.ID, UserType: user.Type, TimeZone: zone}, nil
	})
}

func newTestStore(t *testing.T, prefs PreferenceSource) (Store, *testutil.SlotRepository) {
	t.Helper()
	cfg := testutil.Config()
	repo := testutil.NewSlotRepository()
	if prefs == nil {
		prefs = zonePrefs("UTC")
	}
	return NewStore(repo, prefs, lock.NewLocal(time.Second), validator.NewSlotValidator(cfg.Log), testutil.Clock(), cfg), repo
}

var (
	managerActor = model.ActorFromUser(testutil.Manager)
	agentActor   = model.ActorFromUser(testutil.Agent)
)

func busySlot(start, end time.Time) *model.AvailabilitySlot {
	return &model.AvailabilitySlot{
		UserID:   testutil.Manager.ID,
		UserType: testutil.Manager.Type,
		StartAt:  start,
		EndAt:    end,
		SlotType: model.SlotBusy,
		Title:    "Dentist",
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, nil)

	first, err := store.Upsert(ctx, managerActor, busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)))
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, first.Source)

	again := busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0))
	again.Title = "Dentist (moved)"
	second, err := store.Upsert(ctx, managerActor, again)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Dentist (moved)", second.Title)
	assert.Len(t, repo.All(), 1)
}

func TestStore_UpsertUpdatesByID(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, nil)

	created, err := store.Upsert(ctx, managerActor, busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)))
	require.NoError(t, err)

	moved := busySlot(testutil.At(2, 13, 0), testutil.At(2, 14, 0))
	moved.ID = created.ID
	_, err = store.Upsert(ctx, managerActor, moved)
	require.NoError(t, err)

	all := repo.All()
	require.Len(t, all, 1)
	assert.Equal(t, testutil.At(2, 13, 0), all[0].StartAt)
}

func TestStore_UpsertRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		actor model.Actor
		slot  func() *model.AvailabilitySlot
		code  string
	}{
		{
			name:  "someone else's calendar",
			actor: agentActor,
			slot:  func() *model.AvailabilitySlot { return busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)) },
			code:  apperrors.CodeForbidden,
		},
		{
			name:  "visitor",
			actor: model.Actor{Kind: model.ActorVisitor, Phone: "+14155550100"},
			slot:  func() *model.AvailabilitySlot { return busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)) },
			code:  apperrors.CodeForbidden,
		},
		{
			name:  "booking-sourced slot",
			actor: managerActor,
			slot: func() *model.AvailabilitySlot {
				s := busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0))
				s.SlotType = model.SlotBooking
				return s
			},
			code: apperrors.CodeForbidden,
		},
		{
			name:  "end before start",
			actor: managerActor,
			slot:  func() *model.AvailabilitySlot { return busySlot(testutil.At(2, 10, 0), testutil.At(2, 9, 0)) },
			code:  apperrors.CodeValidation,
		},
		{
			name:  "unknown slot type",
			actor: managerActor,
			slot: func() *model.AvailabilitySlot {
				s := busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0))
				s.SlotType = "vacation"
				return s
			},
			code: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, repo := newTestStore(t, nil)
			_, err := store.Upsert(ctx, tt.actor, tt.slot())
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, repo.All())
		})
	}
}

func TestStore_SystemMayWriteAnyCalendar(t *testing.T) {
	store, _ := newTestStore(t, nil)

	_, err := store.Upsert(context.Background(), model.Actor{Kind: model.ActorSystem}, busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)))
	assert.NoError(t, err)
}

func TestStore_MarkDayOffUsesLocalDay(t *testing.T) {
	store, _ := newTestStore(t, zonePrefs("America/New_York"))

	slot, err := store.MarkDayOff(context.Background(), managerActor, testutil.Manager, "2025-12-24", "")
	require.NoError(t, err)

	assert.Equal(t, model.SlotUnavailable, slot.SlotType)
	assert.Equal(t, "Day off", slot.Title)
	assert.Equal(t, time.Date(2025, 12, 24, 5, 0, 0, 0, time.UTC), slot.StartAt)
	assert.Equal(t, time.Date(2025, 12, 25, 4, 59, 59, 0, time.UTC), slot.EndAt)
}

func TestStore_MarkDayOffRejectsBadDay(t *testing.T) {
	store, _ := newTestStore(t, nil)

	_, err := store.MarkDayOff(context.Background(), managerActor, testutil.Manager, "24/12/2025", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, nil)

	manual, err := store.Upsert(ctx, managerActor, busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)))
	require.NoError(t, err)
	held, err := store.Hold(ctx, &model.Booking{
		ID: "507f1f77bcf86cd799439011", PropertyID: "loft", AssignedUser: testutil.Manager,
		StartAt: testutil.At(2, 11, 0), EndAt: testutil.At(2, 11, 30),
	})
	require.NoError(t, err)

	err = store.Delete(ctx, agentActor, manual.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = store.Delete(ctx, managerActor, held.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, store.Delete(ctx, managerActor, manual.ID))
	assert.Len(t, repo.All(), 1)

	err = store.Delete(ctx, managerActor, manual.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = store.Delete(ctx, managerActor, "not-an-id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestStore_HoldAndRelease(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, nil)
	booking := &model.Booking{
		ID: "507f1f77bcf86cd799439011", PropertyID: "loft", AssignedUser: testutil.Manager,
		StartAt: testutil.At(2, 11, 0), EndAt: testutil.At(2, 11, 30),
	}

	slot, err := store.Hold(ctx, booking)
	require.NoError(t, err)
	assert.Equal(t, model.SlotBooking, slot.SlotType)
	assert.Equal(t, model.SourceBooking, slot.Source)
	assert.Equal(t, booking.ID, slot.BookingID)

	slots, err := store.BookingSlots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	n, err := store.Release(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, repo.All())

	n, err = store.Release(ctx, booking.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_PurgeKeepsBookingSlots(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, nil)

	_, err := store.Upsert(ctx, managerActor, busySlot(testutil.At(2, 9, 0), testutil.At(2, 10, 0)))
	require.NoError(t, err)
	_, err = store.Hold(ctx, &model.Booking{
		ID: "507f1f77bcf86cd799439011", PropertyID: "loft", AssignedUser: testutil.Manager,
		StartAt: testutil.At(2, 11, 0), EndAt: testutil.At(2, 11, 30),
	})
	require.NoError(t, err)

	n, err := store.Purge(ctx, testutil.At(3, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all := repo.All()
	require.Len(t, all, 1)
	assert.Equal(t, model.SourceBooking, all[0].Source)
}

func TestStore_QueryValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	_, err := store.Query(ctx, model.UserRef{ID: "x", Type: "owner"}, testutil.At(1, 0, 0), testutil.At(2, 0, 0))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = store.Query(ctx, testutil.Manager, testutil.At(2, 0, 0), testutil.At(1, 0, 0))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	slots, err := store.Query(ctx, testutil.Manager, testutil.At(1, 0, 0), testutil.At(2, 0, 0))
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}
