package model

// BookingRequest asks for a tour. StartAt and EndAt are RFC 3339 instants
// with an explicit offset. CallerStart and CallerEnd keep whatever the caller
// said or typed and are echoed back untouched; when omitted, the raw StartAt
// and EndAt strings are kept instead. Visitor is checked only after its phone
// is normalized.
type BookingRequest struct {
	PropertyID  string    `json:"property_id" validate:"required,max=100"`
	Visitor     Visitor   `json:"visitor" validate:"-"`
	StartAt     string    `json:"start_at" validate:"required"`
	EndAt       string    `json:"end_at" validate:"required"`
	CallerStart string    `json:"caller_start,omitempty" validate:"max=200"`
	CallerEnd   string    `json:"caller_end,omitempty" validate:"max=200"`
	TimeZone    string    `json:"timezone,omitempty" validate:"omitempty,timezone"`
	CreatedBy   CreatedBy `json:"created_by,omitempty" validate:"omitempty,oneof=voice_agent dashboard phone"`
	Notes       string    `json:"notes,omitempty" validate:"max=1000"`
}

type AvailabilityCheck struct {
	PropertyID string `json:"property_id" validate:"required,max=100"`
	StartAt    string `json:"start_at" validate:"required"`
	EndAt      string `json:"end_at" validate:"required"`
}

type ApproveRequest struct {
	Slot *Interval `json:"slot,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type RescheduleRequest struct {
	Candidates []Interval `json:"candidates" validate:"required,min=1,max=3"`
	Reason     string     `json:"reason,omitempty" validate:"max=500"`
}

type ConfirmRequest struct {
	Index int `json:"index" validate:"min=0,max=2"`
}

// VisitorQuery identifies a visitor's bookings by phone or name, optionally
// narrowed by a fuzzy property name.
type VisitorQuery struct {
	Phone    string          `json:"phone,omitempty"`
	Name     string          `json:"name,omitempty" validate:"max=100"`
	Status   []BookingStatus `json:"status,omitempty" validate:"dive,oneof=pending approved denied rescheduled cancelled"`
	Property string          `json:"property,omitempty" validate:"max=200"`
}

type VisitorCancelRequest struct {
	VisitorQuery
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type DayOffRequest struct {
	UserID   string   `json:"user_id" validate:"required"`
	UserType UserType `json:"user_type" validate:"required,oneof=manager agent"`
	Day      string   `json:"day" validate:"required,datetime=2006-01-02"`
	Title    string   `json:"title,omitempty" validate:"max=200"`
}

type ReassignRequest struct {
	ToUser UserRef `json:"to_user"`
	Reason string  `json:"reason,omitempty" validate:"max=500"`
}
