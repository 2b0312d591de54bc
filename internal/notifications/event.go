// Package notifications fans booking lifecycle events out to an external
// delivery channel without making the booking flow wait for it.
package notifications

import (
	"time"

	"tourbook/pkg/model"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated     EventType = "booking.created"
	EventApproved    EventType = "booking.approved"
	EventDenied      EventType = "booking.denied"
	EventRescheduled EventType = "booking.rescheduled"
	EventCancelled   EventType = "booking.cancelled"
)

type Event struct {
	ID            string              `json:"id"`
	Type          EventType           `json:"type"`
	BookingID     string              `json:"booking_id"`
	PropertyID    string              `json:"property_id"`
	Status        model.BookingStatus `json:"status"`
	AssignedUser  model.UserRef       `json:"assigned_user"`
	Visitor       model.Visitor       `json:"visitor"`
	StartAt       time.Time           `json:"start_at"`
	EndAt         time.Time           `json:"end_at"`
	CallerStart   string              `json:"caller_start,omitempty"`
	CallerEnd     string              `json:"caller_end,omitempty"`
	ProposedSlots []model.Interval    `json:"proposed_slots,omitempty"`
	Actor         string              `json:"actor"`
	Reason        string              `json:"reason,omitempty"`
	At            time.Time           `json:"at"`
}

// NewEvent snapshots b after a transition performed by actor.
func NewEvent(t EventType, b *model.Booking, actor, reason string, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		BookingID:     b.ID,
		PropertyID:    b.PropertyID,
		Status:        b.Status,
		AssignedUser:  b.AssignedUser,
		Visitor:       b.Visitor,
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
		CallerStart:   b.CallerStart,
		CallerEnd:     b.CallerEnd,
		ProposedSlots: b.ProposedSlots,
		Actor:         actor,
		Reason:        reason,
		At:            at,
	}
}
