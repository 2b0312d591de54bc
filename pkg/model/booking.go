package model

import (
	"slices"
	"time"
)

type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusApproved    BookingStatus = "approved"
	StatusDenied      BookingStatus = "denied"
	StatusRescheduled BookingStatus = "rescheduled"
	StatusCancelled   BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:     {StatusApproved, StatusDenied, StatusRescheduled, StatusCancelled},
	StatusApproved:    {StatusCancelled},
	StatusRescheduled: {StatusApproved, StatusDenied, StatusCancelled},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	return slices.Contains(bookingTransitions[s], next)
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// SourcesFor lists every status that may move to next.
func SourcesFor(next BookingStatus) []BookingStatus {
	var from []BookingStatus
	for _, s := range []BookingStatus{StatusPending, StatusApproved, StatusRescheduled} {
		if s.CanTransition(next) {
			from = append(from, s)
		}
	}
	return from
}

type CreatedBy string

const (
	CreatedByVoiceAgent CreatedBy = "voice_agent"
	CreatedByDashboard  CreatedBy = "dashboard"
	CreatedByPhone      CreatedBy = "phone"
)

type Visitor struct {
	Name  string `json:"name" bson:"name" validate:"omitempty,min=1,max=100"`
	Phone string `json:"phone" bson:"phone" validate:"omitempty,e164"`
	Email string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	// NameKey is Name folded for identity lookups.
	NameKey string `json:"-" bson:"name_key,omitempty"`
}

type AuditAction string

const (
	ActionCreated     AuditAction = "created"
	ActionApproved    AuditAction = "approved"
	ActionDenied      AuditAction = "denied"
	ActionRescheduled AuditAction = "rescheduled"
	ActionCancelled   AuditAction = "cancelled"
)

type AuditEntry struct {
	At     time.Time      `json:"at" bson:"at"`
	Actor  string         `json:"actor" bson:"actor"`
	Action AuditAction    `json:"action" bson:"action"`
	Detail map[string]any `json:"detail,omitempty" bson:"detail,omitempty"`
}

type Booking struct {
	ID             string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PropertyID     string        `json:"property_id" bson:"property_id" validate:"required"`
	AssignedUser   UserRef       `json:"assigned_user" bson:"assigned_user"`
	Visitor        Visitor       `json:"visitor" bson:"visitor"`
	RequestedAt    time.Time     `json:"requested_at" bson:"requested_at"`
	StartAt        time.Time     `json:"start_at" bson:"start_at" validate:"required"`
	EndAt          time.Time     `json:"end_at" bson:"end_at" validate:"required,gtfield=StartAt"`
	TimeZone       string        `json:"timezone" bson:"timezone" validate:"required,timezone"`
	CallerStart    string        `json:"caller_start,omitempty" bson:"caller_start,omitempty"`
	CallerEnd      string        `json:"caller_end,omitempty" bson:"caller_end,omitempty"`
	Status         BookingStatus `json:"status" bson:"status"`
	CreatedBy      CreatedBy     `json:"created_by" bson:"created_by" validate:"required,oneof=voice_agent dashboard phone"`
	Notes          string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"max=1000"`
	ProposedSlots  []Interval    `json:"proposed_slots,omitempty" bson:"proposed_slots,omitempty"`
	AuditLog       []AuditEntry  `json:"audit_log,omitempty" bson:"audit_log"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty" bson:"deleted_at"`
	DeletionReason string        `json:"deletion_reason,omitempty" bson:"deletion_reason,omitempty"`
	DeletedBy      string        `json:"deleted_by,omitempty" bson:"deleted_by,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) Interval() Interval {
	return Interval{StartAt: b.StartAt, EndAt: b.EndAt}
}

func (b *Booking) Deleted() bool {
	return b.DeletedAt != nil
}

// HasProposal reports whether slot is one of the proposed candidates.
func (b *Booking) HasProposal(slot Interval) bool {
	for _, p := range b.ProposedSlots {
		if p.Equal(slot) {
			return true
		}
	}
	return false
}

type Deletion struct {
	At     time.Time
	Reason string
	By     string
}

// BookingTransition is a guarded status change: it applies only while the
// stored booking is active and its status is one of From.
type BookingTransition struct {
	From          []BookingStatus
	To            BookingStatus
	StartAt       *time.Time
	EndAt         *time.Time
	AssignedUser  *UserRef
	ProposedSlots *[]Interval
	Deletion      *Deletion
	Audit         AuditEntry
}

// Apply mutates b the way the repository applies t to the stored document.
func (t BookingTransition) Apply(b *Booking, now time.Time) {
	b.Status = t.To
	if t.StartAt != nil {
		b.StartAt = *t.StartAt
	}
	if t.EndAt != nil {
		b.EndAt = *t.EndAt
	}
	if t.AssignedUser != nil {
		b.AssignedUser = *t.AssignedUser
	}
	if t.ProposedSlots != nil {
		b.ProposedSlots = *t.ProposedSlots
	}
	if t.Deletion != nil {
		at := t.Deletion.At
		b.DeletedAt = &at
		b.DeletionReason = t.Deletion.Reason
		b.DeletedBy = t.Deletion.By
	}
	b.AuditLog = append(b.AuditLog, t.Audit)
	b.UpdatedAt = now
}

type BookingFilter struct {
	UserRef        *UserRef
	PropertyID     string
	Status         []BookingStatus
	Phone          string
	NameKey        string
	IncludeDeleted bool
	Limit          int64
	Offset         int64
}
