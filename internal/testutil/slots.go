package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	availabilityerrors "tourbook/internal/availability/errors"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SlotRepository is an in-memory availability slot store.
type SlotRepository struct {
	mu    sync.Mutex
	slots map[string]model.AvailabilitySlot

	// FailWith, when set, is returned by every read.
	FailWith error
}

func NewSlotRepository() *SlotRepository {
	return &SlotRepository{slots: make(map[string]model.AvailabilitySlot)}
}

func (r *SlotRepository) Create(_ context.Context, slot *model.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot.ID == "" {
		slot.ID = primitive.NewObjectID().Hex()
	}
	r.slots[slot.ID] = *slot
	return nil
}

func (r *SlotRepository) Update(_ context.Context, slot *model.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := primitive.ObjectIDFromHex(slot.ID); err != nil {
		return availabilityerrors.ErrInvalidID
	}
	existing, ok := r.slots[slot.ID]
	if !ok {
		return availabilityerrors.ErrNotFound
	}
	existing.StartAt = slot.StartAt
	existing.EndAt = slot.EndAt
	existing.SlotType = slot.SlotType
	existing.Title = slot.Title
	existing.UpdatedAt = slot.UpdatedAt
	r.slots[slot.ID] = existing
	return nil
}

func (r *SlotRepository) FindByID(_ context.Context, id string) (*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, availabilityerrors.ErrInvalidID
	}
	slot, ok := r.slots[id]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	return &slot, nil
}

func (r *SlotRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[id]; !ok {
		return availabilityerrors.ErrNotFound
	}
	delete(r.slots, id)
	return nil
}

func (r *SlotRepository) FindOverlapping(_ context.Context, user model.UserRef, from, to time.Time, types []model.SlotType) ([]*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWith != nil {
		return nil, r.FailWith
	}

	var out []*model.AvailabilitySlot
	for _, s := range r.slots {
		if s.User() != user || !model.Overlaps(s.StartAt, s.EndAt, from, to) {
			continue
		}
		if types != nil && !slices.Contains(types, s.SlotType) {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sortSlots(out)
	return out, nil
}

func (r *SlotRepository) FindIdentical(_ context.Context, user model.UserRef, slotType model.SlotType, start, end time.Time) (*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.User() == user && s.SlotType == slotType && s.Source == model.SourceManual &&
			s.StartAt.Equal(start) && s.EndAt.Equal(end) {
			return &s, nil
		}
	}
	return nil, availabilityerrors.ErrNotFound
}

func (r *SlotRepository) DeleteByBookingID(_ context.Context, bookingID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.slots {
		if s.BookingID == bookingID && s.Source == model.SourceBooking {
			delete(r.slots, id)
			n++
		}
	}
	return n, nil
}

func (r *SlotRepository) FindBookingSourced(_ context.Context, limit int64) ([]*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.AvailabilitySlot
	for _, s := range r.slots {
		if s.Source == model.SourceBooking {
			s := s
			out = append(out, &s)
		}
	}
	sortSlots(out)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SlotRepository) DeleteEndedBefore(_ context.Context, sources []model.SlotSource, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.slots {
		if slices.Contains(sources, s.Source) && s.EndAt.Before(before) {
			delete(r.slots, id)
			n++
		}
	}
	return n, nil
}

func (r *SlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// All returns every stored slot ordered by start.
func (r *SlotRepository) All() []*model.AvailabilitySlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.AvailabilitySlot, 0, len(r.slots))
	for _, s := range r.slots {
		s := s
		out = append(out, &s)
	}
	sortSlots(out)
	return out
}

func sortSlots(slots []*model.AvailabilitySlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartAt.Equal(slots[j].StartAt) {
			return slots[i].StartAt.Before(slots[j].StartAt)
		}
		return slots[i].ID < slots[j].ID
	})
}
