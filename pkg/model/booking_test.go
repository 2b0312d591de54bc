package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 12, 1, 16, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"partial overlap", NewInterval(at(0), at(30)), NewInterval(at(15), at(45)), true},
		{"contained", NewInterval(at(0), at(60)), NewInterval(at(15), at(30)), true},
		{"identical", NewInterval(at(0), at(30)), NewInterval(at(0), at(30)), true},
		{"touching end", NewInterval(at(0), at(30)), NewInterval(at(30), at(60)), false},
		{"touching start", NewInterval(at(30), at(60)), NewInterval(at(0), at(30)), false},
		{"disjoint", NewInterval(at(0), at(30)), NewInterval(at(60), at(90)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestBookingStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDenied, true},
		{StatusPending, StatusRescheduled, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusDenied, false},
		{StatusApproved, StatusRescheduled, false},
		{StatusRescheduled, StatusApproved, true},
		{StatusRescheduled, StatusDenied, true},
		{StatusRescheduled, StatusCancelled, true},
		{StatusRescheduled, StatusRescheduled, false},
		{StatusDenied, StatusApproved, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, StatusDenied.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusApproved.Terminal())
}

func TestSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []BookingStatus{StatusPending, StatusApproved, StatusRescheduled}, SourcesFor(StatusCancelled))
	assert.ElementsMatch(t, []BookingStatus{StatusPending, StatusRescheduled}, SourcesFor(StatusApproved))
	assert.ElementsMatch(t, []BookingStatus{StatusPending}, SourcesFor(StatusRescheduled))
}

func TestBookingTransition_Apply(t *testing.T) {
	now := time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)
	slots := []Interval{}
	b := &Booking{
		Status:        StatusRescheduled,
		ProposedSlots: []Interval{NewInterval(now, now.Add(time.Hour))},
		AuditLog:      []AuditEntry{{Action: ActionCreated}},
	}

	BookingTransition{
		To:            StatusApproved,
		ProposedSlots: &slots,
		Audit:         AuditEntry{At: now, Action: ActionApproved},
	}.Apply(b, now)

	assert.Equal(t, StatusApproved, b.Status)
	assert.Empty(t, b.ProposedSlots)
	assert.Len(t, b.AuditLog, 2)
	assert.Equal(t, ActionApproved, b.AuditLog[1].Action)
	assert.Nil(t, b.DeletedAt)
}

func TestActor(t *testing.T) {
	u := UserRef{ID: "u1", Type: UserTypeAgent}

	assert.True(t, ActorFromUser(u).Is(u))
	assert.False(t, Actor{Kind: ActorVisitor, Phone: "+15551234567"}.Is(u))
	assert.Equal(t, "agent:u1", u.Key())
	assert.Equal(t, "visitor:+15551234567", Actor{Kind: ActorVisitor, Phone: "+15551234567"}.Key())
	assert.Equal(t, "system", Actor{Kind: ActorSystem}.Key())
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	assert.NoError(t, err)
	assert.Equal(t, 570, m)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
