package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	bookingserrors "tourbook/internal/bookings/errors"
	"tourbook/internal/notifications"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingRepository is an in-memory booking store with the same guarded
// transition semantics as the Mongo repository.
type BookingRepository struct {
	mu       sync.Mutex
	bookings map[string]model.Booking

	// FailWith, when set, is returned by FindByID and Find.
	FailWith error
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{bookings: make(map[string]model.Booking)}
}

func (r *BookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = primitive.NewObjectID().Hex()
	}
	r.bookings[booking.ID] = clone(*booking)
	return nil
}

func (r *BookingRepository) FindByID(_ context.Context, id string, includeDeleted bool) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWith != nil {
		return nil, r.FailWith
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	b, ok := r.bookings[id]
	if !ok || (b.Deleted() && !includeDeleted) {
		return nil, bookingserrors.ErrNotFound
	}
	out := clone(b)
	return &out, nil
}

func (r *BookingRepository) Transition(_ context.Context, id string, t model.BookingTransition, now time.Time) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok || b.Deleted() || !slices.Contains(t.From, b.Status) {
		return nil, bookingserrors.ErrStaleState
	}
	t.Apply(&b, now)
	if len(b.ProposedSlots) == 0 {
		b.ProposedSlots = nil
	}
	r.bookings[id] = clone(b)

	out := clone(b)
	return &out, nil
}

func (r *BookingRepository) Find(_ context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWith != nil {
		return nil, r.FailWith
	}

	out := r.match(filter)
	if filter.Offset > 0 {
		if filter.Offset >= int64(len(out)) {
			return []*model.Booking{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *BookingRepository) Count(_ context.Context, filter model.BookingFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.match(filter))), nil
}

func (r *BookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// All returns every stored booking, deleted or not, ordered by start.
func (r *BookingRepository) All() []*model.Booking {
	return r.mustMatch(model.BookingFilter{IncludeDeleted: true})
}

// Put stores b as is, bypassing the transition rules.
func (r *BookingRepository) Put(b model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bookings[b.ID] = clone(b)
}

func (r *BookingRepository) mustMatch(filter model.BookingFilter) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.match(filter)
}

func (r *BookingRepository) match(f model.BookingFilter) []*model.Booking {
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if f.UserRef != nil && b.AssignedUser != *f.UserRef {
			continue
		}
		if f.PropertyID != "" && b.PropertyID != f.PropertyID {
			continue
		}
		if len(f.Status) > 0 && !slices.Contains(f.Status, b.Status) {
			continue
		}
		if !f.IncludeDeleted && b.Deleted() {
			continue
		}
		if f.Phone != "" || f.NameKey != "" {
			phone := f.Phone != "" && b.Visitor.Phone == f.Phone
			name := f.NameKey != "" && b.Visitor.NameKey == f.NameKey
			if !phone && !name {
				continue
			}
		}
		c := clone(b)
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(b model.Booking) model.Booking {
	b.AuditLog = slices.Clone(b.AuditLog)
	b.ProposedSlots = slices.Clone(b.ProposedSlots)
	if b.DeletedAt != nil {
		at := *b.DeletedAt
		b.DeletedAt = &at
	}
	return b
}

// Events records emitted notifications.
type Events struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (e *Events) Emit(ev notifications.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, ev)
}

func (e *Events) Types() []notifications.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]notifications.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func (e *Events) All() []notifications.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.events)
}
