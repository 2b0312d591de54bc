package model

import "time"

type SlotType string

const (
	SlotAvailable   SlotType = "available"
	SlotUnavailable SlotType = "unavailable"
	SlotBusy        SlotType = "busy"
	SlotPersonal    SlotType = "personal"
	SlotBooking     SlotType = "booking"
)

// BlockingSlotTypes prevent an approval from overlapping them.
var BlockingSlotTypes = []SlotType{SlotUnavailable, SlotBusy, SlotBooking}

func (t SlotType) Blocking() bool {
	switch t {
	case SlotUnavailable, SlotBusy, SlotBooking:
		return true
	}
	return false
}

type SlotSource string

const (
	SourceManual  SlotSource = "manual"
	SourceBooking SlotSource = "booking"
	SourceSystem  SlotSource = "system"
)

type AvailabilitySlot struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string     `json:"user_id" bson:"user_id" validate:"required"`
	UserType  UserType   `json:"user_type" bson:"user_type" validate:"required,oneof=manager agent"`
	StartAt   time.Time  `json:"start_at" bson:"start_at" validate:"required"`
	EndAt     time.Time  `json:"end_at" bson:"end_at" validate:"required,gtfield=StartAt"`
	SlotType  SlotType   `json:"slot_type" bson:"slot_type" validate:"required,oneof=available unavailable busy personal booking"`
	Source    SlotSource `json:"source" bson:"source" validate:"required,oneof=manual booking system"`
	BookingID string     `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	Title     string     `json:"title,omitempty" bson:"title,omitempty" validate:"max=200"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func (s *AvailabilitySlot) User() UserRef {
	return UserRef{ID: s.UserID, Type: s.UserType}
}

func (s *AvailabilitySlot) Interval() Interval {
	return Interval{StartAt: s.StartAt, EndAt: s.EndAt}
}
