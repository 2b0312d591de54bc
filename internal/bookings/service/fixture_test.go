package service

import (
	"context"
	"testing"
	"time"

	assignments "tourbook/internal/assignments/service"
	availability "tourbook/internal/availability/service"
	slotvalidator "tourbook/internal/availability/validator"
	"tourbook/internal/bookings/validator"
	prefcache "tourbook/internal/preferences/cache"
	preferences "tourbook/internal/preferences/service"
	prefvalidator "tourbook/internal/preferences/validator"
	"tourbook/internal/suggest"
	"tourbook/internal/testutil"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	"tourbook/pkg/lock"
	"tourbook/pkg/model"
	"tourbook/pkg/ratelimit"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	cfg      *config.Config
	clock    *clock.Manual
	bookings *testutil.BookingRepository
	slots    *testutil.SlotRepository
	ledger   *testutil.AssignmentRepository
	events   *testutil.Events
	store    availability.Store
	resolver assignments.Resolver
	locker   lock.Locker
	svc      BookingService
}

type fixtureOption func(*fixture)

func withLocker(l lock.Locker) fixtureOption {
	return func(f *fixture) { f.locker = l }
}

func withConfig(mutate func(*config.Config)) fixtureOption {
	return func(f *fixture) { mutate(f.cfg) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		cfg:      testutil.Config(),
		clock:    testutil.Clock(),
		bookings: testutil.NewBookingRepository(),
		slots:    testutil.NewSlotRepository(),
		ledger:   testutil.NewAssignmentRepository(),
		events:   &testutil.Events{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.locker == nil {
		f.locker = lock.NewLocal(f.cfg.LockTimeout)
	}

	prefs := preferences.NewPreferencesService(
		testutil.NewPreferencesRepository(),
		prefcache.NewMemory(f.cfg.CacheTTL, f.clock),
		prefvalidator.NewPreferencesValidator(f.cfg.Log),
		f.clock,
		f.cfg,
	)
	checker := availability.NewChecker(f.slots, f.clock, f.cfg)
	f.store = availability.NewStore(f.slots, prefs, f.locker, slotvalidator.NewSlotValidator(f.cfg.Log), f.clock, f.cfg)
	f.resolver = assignments.NewResolver(f.ledger, testutil.NewPropertyRepository(testutil.Loft, testutil.Cottage), f.clock, f.cfg)

	f.svc = NewBookingService(Deps{
		Repo:      f.bookings,
		Store:     f.store,
		Checker:   checker,
		Resolver:  f.resolver,
		Suggester: suggest.NewSuggester(checker, prefs, f.clock, f.cfg),
		Locker:    f.locker,
		Limiter:   ratelimit.New(f.cfg.StateChangeLimit, f.cfg.StateChangeWindow, f.clock),
		Events:    f.events,
		Validator: validator.NewBookingValidator(f.cfg.Log),
		Clock:     f.clock,
	}, f.cfg)
	return f
}

var (
	manager = model.ActorFromUser(testutil.Manager)
	agent   = model.ActorFromUser(testutil.Agent)
	system  = model.Actor{Kind: model.ActorSystem}
	caller  = model.Actor{Kind: model.ActorVisitor, Phone: "+14155550100"}
)

func request(propertyID string, start, end time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		PropertyID: propertyID,
		Visitor:    model.Visitor{Name: "Dana Whitfield", Phone: "+1 415 555 0100"},
		StartAt:    start.Format(time.RFC3339),
		EndAt:      end.Format(time.RFC3339),
	}
}

// pending creates a pending booking for the loft.
func (f *fixture) pending(t *testing.T, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), caller, request(testutil.Loft.ID, start, end))
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, b.Status)
	return b
}

// approved creates and approves a loft booking.
func (f *fixture) approved(t *testing.T, start, end time.Time) *model.Booking {
	t.Helper()
	b := f.pending(t, start, end)
	b, err := f.svc.Approve(context.Background(), b.ID, manager, nil)
	require.NoError(t, err)
	return b
}

func (f *fixture) bookingSlots(t *testing.T) []*model.AvailabilitySlot {
	t.Helper()
	var out []*model.AvailabilitySlot
	for _, s := range f.slots.All() {
		if s.Source == model.SourceBooking {
			out = append(out, s)
		}
	}
	return out
}
